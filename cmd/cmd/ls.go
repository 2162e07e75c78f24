package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/fs"
)

func DefineLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "ls <image>",
		Short:        "List the files stored in an image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunLs,
	}
}

func RunLs(cmd *cobra.Command, args []string) error {
	return withMounted(args[0], func(fsys *fs.FS) error {
		return fsys.Ls(os.Stdout)
	})
}
