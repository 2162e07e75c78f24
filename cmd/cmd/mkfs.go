package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/disk"
	"github.com/tedshao/ecs150fs/internal/fs"
	fmtutil "github.com/tedshao/ecs150fs/pkg/util/format"
)

func DefineMkfsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mkfs <image>",
		Short:        "Create a freshly formatted disk image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunMkfs,
	}

	cmd.Flags().Int("data-blocks", 1024, "number of data blocks in the image")
	cmd.Flags().String("size", "", "data region size (e.g. 4MB); overrides --data-blocks")

	return cmd
}

func RunMkfs(cmd *cobra.Command, args []string) error {
	dataBlocks, _ := cmd.Flags().GetInt("data-blocks")

	if size, _ := cmd.Flags().GetString("size"); size != "" {
		bytes, err := fmtutil.ParseBytes(size)
		if err != nil {
			return err
		}
		dataBlocks = int((bytes + disk.BlockSize - 1) / disk.BlockSize)
	}

	if err := fs.Format(args[0], dataBlocks); err != nil {
		return err
	}

	log := newLogger(cmd)
	log.Infof("created %s with %d data blocks (%s of file space)",
		args[0], dataBlocks, fmtutil.FormatBytes(int64(dataBlocks)*disk.BlockSize))
	return nil
}
