package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/fs"
)

func DefineInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "info <image>",
		Short:        "Print filesystem statistics",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunInfo,
	}
}

func RunInfo(cmd *cobra.Command, args []string) error {
	return withMounted(args[0], func(fsys *fs.FS) error {
		return fsys.Info(os.Stdout)
	})
}
