//go:build !linux
// +build !linux

package fuse

import (
	"fmt"

	ecsfs "github.com/tedshao/ecs150fs/internal/fs"
	"github.com/tedshao/ecs150fs/internal/logger"
)

func Mount(mountpoint string, fsys *ecsfs.FS, log *logger.Logger) error {
	return fmt.Errorf("FUSE mount is only supported on Linux")
}
