package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/fs"
)

func DefineCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "create <image> <name>",
		Short:        "Create an empty file inside an image",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunCreate,
	}
}

func RunCreate(cmd *cobra.Command, args []string) error {
	return withMounted(args[0], func(fsys *fs.FS) error {
		return fsys.Create(args[1])
	})
}
