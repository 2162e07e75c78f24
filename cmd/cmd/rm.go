package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/fs"
)

func DefineRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "rm <image> <name>",
		Short:        "Delete a file from an image",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunRm,
	}
}

func RunRm(cmd *cobra.Command, args []string) error {
	return withMounted(args[0], func(fsys *fs.FS) error {
		return fsys.Delete(args[1])
	})
}
