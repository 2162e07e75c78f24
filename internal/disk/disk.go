// Copyright (c) 2025 Ted Shao
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package disk

import (
	"fmt"
	"io"
	"os"
)

// BlockSize is the fixed size of every block on a virtual disk.
const BlockSize = 4096

// Disk is an open virtual disk: a regular file addressed as an array of
// fixed-size blocks. On Unix, a Disk holds an exclusive advisory lock on the
// backing file for its whole lifetime, so at most one process operates on an
// image at a time; on other platforms no lock is taken.
type Disk struct {
	path  string
	file  *os.File
	count int
}

// Open opens the disk image at path for block-level read/write access.
// The file size must be a whole number of blocks.
func Open(path string) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: lock %s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("disk: size of %s: %w", path, err)
	}

	if size%BlockSize != 0 {
		unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("disk: %s: size %d is not a multiple of the block size", path, size)
	}

	return &Disk{
		path:  path,
		file:  f,
		count: int(size / BlockSize),
	}, nil
}

// Close releases the lock and closes the backing file.
func (d *Disk) Close() error {
	if d.file == nil {
		return fmt.Errorf("disk: already closed")
	}
	unlockFile(d.file)
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return fmt.Errorf("disk: close %s: %w", d.path, err)
	}
	return nil
}

// Count returns the total number of blocks on the disk.
func (d *Disk) Count() int {
	return d.count
}

// Read fills buf with the content of the block at index idx.
// buf must be exactly BlockSize bytes long.
func (d *Disk) Read(idx int, buf []byte) error {
	if err := d.check(idx, buf); err != nil {
		return err
	}
	if _, err := d.file.ReadAt(buf, int64(idx)*BlockSize); err != nil {
		return fmt.Errorf("disk: read block %d of %s: %w", idx, d.path, err)
	}
	return nil
}

// Write stores buf as the content of the block at index idx.
// buf must be exactly BlockSize bytes long.
func (d *Disk) Write(idx int, buf []byte) error {
	if err := d.check(idx, buf); err != nil {
		return err
	}
	if _, err := d.file.WriteAt(buf, int64(idx)*BlockSize); err != nil {
		return fmt.Errorf("disk: write block %d of %s: %w", idx, d.path, err)
	}
	return nil
}

func (d *Disk) check(idx int, buf []byte) error {
	if d.file == nil {
		return fmt.Errorf("disk: closed")
	}
	if idx < 0 || idx >= d.count {
		return fmt.Errorf("disk: block index %d out of range [0, %d)", idx, d.count)
	}
	if len(buf) != BlockSize {
		return fmt.Errorf("disk: buffer size %d, want %d", len(buf), BlockSize)
	}
	return nil
}
