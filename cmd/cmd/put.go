package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/fs"
	fmtutil "github.com/tedshao/ecs150fs/pkg/util/format"
)

func DefinePutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "put <image> <file>",
		Short:        "Copy a host file into an image",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunPut,
	}

	cmd.Flags().String("name", "", "name to store the file under (defaults to the file's base name)")
	cmd.Flags().BoolP("force", "f", false, "replace the file if it already exists in the image")

	return cmd
}

func RunPut(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = filepath.Base(args[1])
	}
	force, _ := cmd.Flags().GetBool("force")

	log := newLogger(cmd)

	return withMounted(args[0], func(fsys *fs.FS) error {
		if err := fsys.Create(name); err != nil {
			if !errors.Is(err, fs.ErrExists) || !force {
				return err
			}
			// Replace rather than overwrite in place, so a shorter file
			// does not keep the old tail.
			if err := fsys.Delete(name); err != nil {
				return err
			}
			if err := fsys.Create(name); err != nil {
				return err
			}
		}

		fd, err := fsys.Open(name)
		if err != nil {
			return err
		}
		defer fsys.Close(fd)

		n, err := fsys.Write(fd, data)
		if err != nil {
			return err
		}
		if n < len(data) {
			log.Warnf("short write: stored %s of %s, image is full",
				fmtutil.FormatBytes(int64(n)), fmtutil.FormatBytes(int64(len(data))))
			return nil
		}

		log.Infof("stored %s as %s", fmtutil.FormatBytes(int64(n)), name)
		return nil
	})
}
