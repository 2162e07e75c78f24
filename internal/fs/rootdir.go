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
package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tedshao/ecs150fs/internal/disk"
)

const (
	// FilenameLen is the on-disk name field width, terminator included.
	FilenameLen = 16

	// FileMaxCount is the number of entries in the root directory.
	FileMaxCount = 128

	dirEntryPadding = 10
)

// dirEntry is one packed 32-byte slot of the root directory block.
// A slot is empty iff Name[0] == 0.
type dirEntry struct {
	Name       [FilenameLen]byte
	Size       uint32
	StartIndex uint16
	Padding    [dirEntryPadding]byte
}

func (e *dirEntry) present() bool {
	return e.Name[0] != 0
}

func (e *dirEntry) name() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = FilenameLen
	}
	return string(e.Name[:n])
}

// rootDir is the in-memory copy of the root directory block.
type rootDir [FileMaxCount]dirEntry

// loadRootDir reads the root directory off the disk.
func loadRootDir(dev *disk.Disk, sb *superblock) (*rootDir, error) {
	block := make([]byte, disk.BlockSize)
	if err := dev.Read(int(sb.RootBlkIndex), block); err != nil {
		return nil, err
	}

	var rd rootDir
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &rd); err != nil {
		return nil, fmt.Errorf("rootdir: decode: %w", err)
	}
	return &rd, nil
}

// flush writes the root directory block back to the disk.
func (rd *rootDir) flush(dev *disk.Disk, sb *superblock) error {
	var buf bytes.Buffer
	buf.Grow(disk.BlockSize)
	if err := binary.Write(&buf, binary.LittleEndian, rd); err != nil {
		return fmt.Errorf("rootdir: encode: %w", err)
	}
	return dev.Write(int(sb.RootBlkIndex), buf.Bytes())
}

// lookup returns the index of the entry named name, or -1.
func (rd *rootDir) lookup(name string) int {
	for i := range rd {
		if rd[i].present() && rd[i].name() == name {
			return i
		}
	}
	return -1
}

// firstFree returns the index of the first empty entry, or -1 when the
// directory is full.
func (rd *rootDir) firstFree() int {
	for i := range rd {
		if !rd[i].present() {
			return i
		}
	}
	return -1
}

// freeCount returns the number of empty entries.
func (rd *rootDir) freeCount() int {
	n := 0
	for i := range rd {
		if !rd[i].present() {
			n++
		}
	}
	return n
}

// validName reports whether name fits a directory slot: non-empty, at most
// FilenameLen-1 bytes so the terminator fits, and free of NUL bytes.
func validName(name string) bool {
	if len(name) == 0 || len(name) >= FilenameLen {
		return false
	}
	return !strings.ContainsRune(name, 0)
}
