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

// Package fs implements ECS150FS, a FAT-style filesystem stored inside a
// single backing file addressed as 4096-byte blocks. A mounted image is
// driven through an FS handle: create and delete named files in the flat
// root directory, open them through a 32-slot descriptor table, and read or
// write arbitrary byte ranges over singly linked FAT chains.
//
// The engine is single-threaded: callers wanting concurrent access must
// serialise externally. Metadata lives in memory between Mount and Umount
// and is flushed back on Umount only.
package fs

import (
	"errors"
	"fmt"
	"io"

	"github.com/tedshao/ecs150fs/internal/disk"
)

var (
	ErrNotMounted    = errors.New("no filesystem mounted")
	ErrBadSignature  = errors.New("bad filesystem signature")
	ErrBlockMismatch = errors.New("superblock block count does not match disk size")
	ErrInvalidName   = errors.New("invalid file name")
	ErrExists        = errors.New("file already exists")
	ErrNotFound      = errors.New("file not found")
	ErrRootFull      = errors.New("root directory is full")
	ErrDiskFull      = errors.New("no free data blocks")
	ErrFileOpen      = errors.New("file is open")
	ErrTableFull     = errors.New("open-file table is full")
	ErrBadDesc       = errors.New("invalid file descriptor")
	ErrOffsetRange   = errors.New("offset is out of range")
	ErrOpenFiles     = errors.New("descriptors still open")
)

// FS is a mounted ECS150FS image. The zero value is not usable; obtain a
// handle through Mount and retire it through Umount.
type FS struct {
	dev  *disk.Disk
	sb   *superblock
	fat  *fat
	root *rootDir
	fds  fdTable
}

// Mount opens the image at path, validates and caches its metadata, and
// returns a live handle. On Unix the image stays exclusively locked until
// Umount.
func Mount(path string) (*FS, error) {
	dev, err := disk.Open(path)
	if err != nil {
		return nil, err
	}

	fsys, err := mount(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return fsys, nil
}

func mount(dev *disk.Disk) (*FS, error) {
	block := make([]byte, disk.BlockSize)
	if err := dev.Read(0, block); err != nil {
		return nil, err
	}

	sb, err := readSuperblockFrom(block)
	if err != nil {
		return nil, err
	}

	if dev.Count() != int(sb.TotalBlkCount) {
		return nil, fmt.Errorf("%w: superblock says %d, disk has %d",
			ErrBlockMismatch, sb.TotalBlkCount, dev.Count())
	}

	root, err := loadRootDir(dev, sb)
	if err != nil {
		return nil, err
	}

	table, err := loadFAT(dev, sb)
	if err != nil {
		return nil, err
	}

	fsys := &FS{
		dev:  dev,
		sb:   sb,
		fat:  table,
		root: root,
	}
	fsys.fds.reset()
	return fsys, nil
}

// Umount flushes all metadata back to the image, releases the lock, and
// retires the handle. It refuses to run while descriptors are live. The
// in-memory state is released even when a flush fails; the error then tells
// the caller durability is not guaranteed.
func (f *FS) Umount() error {
	if f.dev == nil {
		return ErrNotMounted
	}
	if f.fds.open != 0 {
		return ErrOpenFiles
	}

	err := f.flushMetadata()

	if cerr := f.dev.Close(); cerr != nil && err == nil {
		err = cerr
	}

	f.dev = nil
	f.sb = nil
	f.fat = nil
	f.root = nil
	return err
}

func (f *FS) flushMetadata() error {
	img, err := f.sb.encode()
	if err != nil {
		return err
	}
	if err := f.dev.Write(0, img); err != nil {
		return err
	}
	if err := f.fat.flush(f.dev); err != nil {
		return err
	}
	return f.root.flush(f.dev, f.sb)
}

// Create adds an empty file named name to the root directory. Even an empty
// file owns one data block, so its start index is always a valid chain head.
func (f *FS) Create(name string) error {
	if f.dev == nil {
		return ErrNotMounted
	}
	if !validName(name) {
		return ErrInvalidName
	}
	if f.root.lookup(name) >= 0 {
		return ErrExists
	}

	slot := f.root.firstFree()
	if slot < 0 {
		return ErrRootFull
	}

	blk, ok := f.fat.findFree(0)
	if !ok {
		return ErrDiskFull
	}

	e := &f.root[slot]
	*e = dirEntry{}
	copy(e.Name[:], name)
	e.StartIndex = uint16(blk)
	f.fat.entries[blk] = FatEOC
	return nil
}

// Delete removes the named file and frees its chain. A file with a live
// descriptor cannot be deleted.
func (f *FS) Delete(name string) error {
	if f.dev == nil {
		return ErrNotMounted
	}
	if !validName(name) {
		return ErrInvalidName
	}

	idx := f.root.lookup(name)
	if idx < 0 {
		return ErrNotFound
	}
	if f.fds.references(idx) {
		return ErrFileOpen
	}

	f.fat.releaseChain(f.root[idx].StartIndex)
	f.root[idx] = dirEntry{}
	return nil
}

// Open binds the named file to the lowest free descriptor with offset 0.
func (f *FS) Open(name string) (int, error) {
	if f.dev == nil {
		return -1, ErrNotMounted
	}
	if f.fds.open == OpenMaxCount {
		return -1, ErrTableFull
	}
	if !validName(name) {
		return -1, ErrInvalidName
	}

	idx := f.root.lookup(name)
	if idx < 0 {
		return -1, ErrNotFound
	}

	fd := f.fds.firstFree()
	f.fds.slots[fd] = openFile{dirIndex: idx}
	f.fds.open++
	return fd, nil
}

// Close releases the descriptor.
func (f *FS) Close(fd int) error {
	if f.dev == nil {
		return ErrNotMounted
	}
	if !f.fds.valid(fd) {
		return ErrBadDesc
	}
	f.fds.slots[fd] = openFile{dirIndex: -1}
	f.fds.open--
	return nil
}

// Stat returns the current size of the file bound to fd.
func (f *FS) Stat(fd int) (uint32, error) {
	if f.dev == nil {
		return 0, ErrNotMounted
	}
	if !f.fds.valid(fd) {
		return 0, ErrBadDesc
	}
	return f.root[f.fds.slots[fd].dirIndex].Size, nil
}

// Lseek moves the descriptor's offset. Offsets up to and including the file
// size are accepted; reading at the size is how end-of-file is observed.
func (f *FS) Lseek(fd int, offset uint32) error {
	if f.dev == nil {
		return ErrNotMounted
	}
	if !f.fds.valid(fd) {
		return ErrBadDesc
	}
	if offset > f.root[f.fds.slots[fd].dirIndex].Size {
		return ErrOffsetRange
	}
	f.fds.slots[fd].offset = offset
	return nil
}

// dataRead reads the data block with data-region-relative index i.
func (f *FS) dataRead(i uint16, buf []byte) error {
	return f.dev.Read(int(f.sb.DataBlkIndex)+int(i), buf)
}

// dataWrite writes the data block with data-region-relative index i.
func (f *FS) dataWrite(i uint16, buf []byte) error {
	return f.dev.Write(int(f.sb.DataBlkIndex)+int(i), buf)
}

// Read copies up to len(buf) bytes from the descriptor's current offset into
// buf and advances the offset by the number of bytes delivered. A return of
// (0, nil) with a non-empty buf means the offset sits at end-of-file.
func (f *FS) Read(fd int, buf []byte) (int, error) {
	if f.dev == nil {
		return 0, ErrNotMounted
	}
	if !f.fds.valid(fd) {
		return 0, ErrBadDesc
	}

	slot := &f.fds.slots[fd]
	e := &f.root[slot.dirIndex]

	remaining := int(e.Size - slot.offset)
	count := len(buf)
	if count > remaining {
		count = remaining
	}
	if count == 0 {
		return 0, nil
	}

	blk := f.fat.walk(e.StartIndex, int(slot.offset)/disk.BlockSize)
	gap := int(slot.offset) % disk.BlockSize

	scratch := make([]byte, disk.BlockSize)

	copied := 0
	for copied < count {
		n := disk.BlockSize - gap
		if n > count-copied {
			n = count - copied
		}

		if gap == 0 && n == disk.BlockSize {
			// Aligned full block: read straight into the destination.
			if err := f.dataRead(blk, buf[copied:copied+disk.BlockSize]); err != nil {
				slot.offset += uint32(copied)
				return copied, err
			}
		} else {
			if err := f.dataRead(blk, scratch); err != nil {
				slot.offset += uint32(copied)
				return copied, err
			}
			copy(buf[copied:copied+n], scratch[gap:gap+n])
		}

		copied += n
		gap = 0
		if copied < count {
			blk = f.fat.next(blk)
		}
	}

	slot.offset += uint32(copied)
	return copied, nil
}

// blocksFor returns how many blocks back a file of n bytes. Every file owns
// at least one block.
func blocksFor(n uint32) int {
	if n == 0 {
		return 1
	}
	return int((n + disk.BlockSize - 1) / disk.BlockSize)
}

// Write copies len(buf) bytes from buf to the descriptor's current offset,
// growing the chain as needed, and advances the offset by the bytes written.
// When the FAT runs out mid-extension the write is silently capped to the
// capacity the chain could reach; the returned count is then short of
// len(buf). The chain matches the file size on every return path.
func (f *FS) Write(fd int, buf []byte) (int, error) {
	if f.dev == nil {
		return 0, ErrNotMounted
	}
	if !f.fds.valid(fd) {
		return 0, ErrBadDesc
	}

	slot := &f.fds.slots[fd]
	e := &f.root[slot.dirIndex]

	offset := slot.offset
	count := uint32(len(buf))

	nblocks := f.fat.chainLen(e.StartIndex)
	if need := blocksFor(offset + count); need > nblocks {
		tail := int(f.fat.walk(e.StartIndex, nblocks-1))
		for nblocks < need {
			next, ok := f.fat.extend(tail)
			if !ok {
				break
			}
			tail = next
			nblocks++
		}
	}

	if capacity := uint32(nblocks) * disk.BlockSize; offset+count > capacity {
		count = capacity - offset
	}
	if count == 0 {
		return 0, nil
	}

	blk := f.fat.walk(e.StartIndex, int(offset)/disk.BlockSize)
	gap := int(offset) % disk.BlockSize

	scratch := make([]byte, disk.BlockSize)

	written := 0
	for written < int(count) {
		n := disk.BlockSize - gap
		if n > int(count)-written {
			n = int(count) - written
		}

		var err error
		if gap == 0 && n == disk.BlockSize {
			err = f.dataWrite(blk, buf[written:written+disk.BlockSize])
		} else {
			// Partial head or tail: read-modify-write.
			if err = f.dataRead(blk, scratch); err == nil {
				copy(scratch[gap:gap+n], buf[written:written+n])
				err = f.dataWrite(blk, scratch)
			}
		}
		if err != nil {
			return written, f.abortWrite(slot, e, written, err)
		}

		written += n
		gap = 0
		if written < int(count) {
			blk = f.fat.next(blk)
		}
	}

	if end := offset + count; end > e.Size {
		e.Size = end
	}
	slot.offset += count
	return int(count), nil
}

// abortWrite settles the file state after a device failure part-way through
// a write: the size covers the bytes that landed, the chain is trimmed back
// to exactly back that size, and the offset advances past the landed bytes.
func (f *FS) abortWrite(slot *openFile, e *dirEntry, written int, err error) error {
	if end := slot.offset + uint32(written); end > e.Size {
		e.Size = end
	}
	f.fat.truncChain(e.StartIndex, blocksFor(e.Size))
	slot.offset += uint32(written)
	return err
}

// Info writes the filesystem statistics block in the fixed textual layout.
func (f *FS) Info(w io.Writer) error {
	if f.dev == nil {
		return ErrNotMounted
	}

	fmt.Fprintf(w, "FS Info:\n")
	fmt.Fprintf(w, "total_blk_count=%d\n", f.sb.TotalBlkCount)
	fmt.Fprintf(w, "fat_blk_count=%d\n", f.sb.FatBlkCount)
	fmt.Fprintf(w, "rdir_blk=%d\n", f.sb.RootBlkIndex)
	fmt.Fprintf(w, "data_blk=%d\n", f.sb.DataBlkIndex)
	fmt.Fprintf(w, "data_blk_count=%d\n", f.sb.DataBlkCount)
	fmt.Fprintf(w, "fat_free_ratio=%d/%d\n", f.fat.free(), f.sb.DataBlkCount)
	fmt.Fprintf(w, "rdir_free_ratio=%d/%d\n", f.root.freeCount(), FileMaxCount)
	return nil
}

// Ls writes the directory listing in the fixed textual layout, one line per
// present entry in directory order.
func (f *FS) Ls(w io.Writer) error {
	if f.dev == nil {
		return ErrNotMounted
	}

	fmt.Fprintf(w, "FS Ls:\n")
	for i := range f.root {
		e := &f.root[i]
		if e.present() {
			fmt.Fprintf(w, "file: %s, size: %d, data_blk: %d\n", e.name(), e.Size, e.StartIndex)
		}
	}
	return nil
}

// FileInfo describes one present root-directory entry.
type FileInfo struct {
	Name     string
	Size     uint32
	StartBlk uint16
}

// List returns the present root-directory entries in directory order.
func (f *FS) List() ([]FileInfo, error) {
	if f.dev == nil {
		return nil, ErrNotMounted
	}

	var infos []FileInfo
	for i := range f.root {
		e := &f.root[i]
		if e.present() {
			infos = append(infos, FileInfo{
				Name:     e.name(),
				Size:     e.Size,
				StartBlk: e.StartIndex,
			})
		}
	}
	return infos, nil
}
