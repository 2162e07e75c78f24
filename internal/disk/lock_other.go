//go:build !unix
// +build !unix

package disk

import "os"

// Advisory file locks are not available; images are unprotected against
// concurrent opens on this platform.
func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) {}
