package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tedshao/ecs150fs/internal/fs"
	"github.com/tedshao/ecs150fs/internal/fuse"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <image>",
		Short: "Mount a disk image to a specified mountpoint",
		Long: `The 'mount' command exposes the files stored inside a disk image as a
read-only FUSE filesystem. The mount is served until the process receives an
interrupt or termination signal.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringP("mountpoint", "m", "", "directory where the filesystem will be mounted (defaults to a name derived from the image)")
	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	mountpoint, _ := cmd.Flags().GetString("mountpoint")
	if mountpoint == "" {
		mountpoint = getMountpoint(args[0])
	}

	log := newLogger(cmd)

	return withMounted(args[0], func(fsys *fs.FS) error {
		return fuse.Mount(mountpoint, fsys, log)
	})
}

// getMountpoint derives a mountpoint name from the image name by stripping
// the extension. If the extension is empty, "_mnt" is added.
func getMountpoint(imageName string) string {
	baseName := filepath.Base(imageName)
	ext := filepath.Ext(baseName)
	baseName = strings.TrimSuffix(baseName, ext)
	mountpoint := baseName
	if ext == "" {
		mountpoint += "_mnt"
	}
	return mountpoint
}
