package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/disk"
	"github.com/tedshao/ecs150fs/internal/fs"
)

func DefineCatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cat <image> <name>",
		Short:        "Copy a file out of an image",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunCat,
	}

	cmd.Flags().StringP("output", "o", "", "write the file content to the given path instead of stdout")

	return cmd
}

func RunCat(cmd *cobra.Command, args []string) error {
	var out io.Writer = os.Stdout

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		w := bufio.NewWriter(f)
		defer w.Flush()
		out = w
	}

	return withMounted(args[0], func(fsys *fs.FS) error {
		fd, err := fsys.Open(args[1])
		if err != nil {
			return err
		}
		defer fsys.Close(fd)

		buf := make([]byte, 8*disk.BlockSize)
		for {
			n, err := fsys.Read(fd, buf)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
		}
	})
}
