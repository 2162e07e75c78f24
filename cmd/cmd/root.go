package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/env"
	"github.com/tedshao/ecs150fs/internal/fs"
	"github.com/tedshao/ecs150fs/internal/logger"
)

const AppName = "ecsfs"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - ECS150FS disk image tool",
	}

	rootCmd.PersistentFlags().String("log-level", "INFO", "minimum log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(DefineMkfsCommand())
	rootCmd.AddCommand(DefineInfoCommand())
	rootCmd.AddCommand(DefineLsCommand())
	rootCmd.AddCommand(DefineCreateCommand())
	rootCmd.AddCommand(DefineRmCommand())
	rootCmd.AddCommand(DefineCatCommand())
	rootCmd.AddCommand(DefinePutCommand())
	rootCmd.AddCommand(DefineMountCommand())
	rootCmd.AddCommand(DefineVersionCommand())

	return rootCmd.Execute()
}

func DefineVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s (commit %s, built %s)\n", env.AppName, env.Version, env.CommitHash, env.BuildTime)
		},
	}
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(os.Stderr, logger.ParseLevel(level))
}

// withMounted mounts the image, runs fn, and unmounts. An unmount failure is
// only surfaced when fn itself succeeded.
func withMounted(path string, fn func(*fs.FS) error) error {
	fsys, err := fs.Mount(path)
	if err != nil {
		return err
	}

	ferr := fn(fsys)
	if uerr := fsys.Umount(); ferr == nil {
		return uerr
	}
	return ferr
}
