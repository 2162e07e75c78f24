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

	"github.com/google/renameio"
	"github.com/tedshao/ecs150fs/internal/disk"
)

// MaxDataBlocks bounds mkfs geometry: it keeps fat_blk_count comfortably in
// its 8-bit field and total_blk_count in its 16-bit field.
const MaxDataBlocks = 8192

// Format creates a fresh ECS150FS image at path holding dataBlocks data
// blocks. The image appears atomically: it is assembled in a temporary file
// and renamed into place, so an interrupted mkfs leaves no half-written
// image behind.
func Format(path string, dataBlocks int) error {
	if dataBlocks < 1 || dataBlocks > MaxDataBlocks {
		return fmt.Errorf("format: data block count %d out of range [1, %d]", dataBlocks, MaxDataBlocks)
	}

	fatBlocks := (dataBlocks + fatEntriesPerBlock - 1) / fatEntriesPerBlock
	total := 2 + fatBlocks + dataBlocks

	sb := &superblock{
		TotalBlkCount: uint16(total),
		RootBlkIndex:  uint16(1 + fatBlocks),
		DataBlkIndex:  uint16(2 + fatBlocks),
		DataBlkCount:  uint16(dataBlocks),
		FatBlkCount:   uint8(fatBlocks),
	}
	copy(sb.Signature[:], Signature)

	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	defer t.Cleanup()

	img, err := sb.encode()
	if err != nil {
		return err
	}
	if _, err := t.Write(img); err != nil {
		return fmt.Errorf("format: write superblock: %w", err)
	}

	// The FAT starts with the reserved end-of-chain sentinel, everything
	// else free.
	entries := make([]uint16, fatBlocks*fatEntriesPerBlock)
	entries[0] = FatEOC

	var buf bytes.Buffer
	buf.Grow(fatBlocks * disk.BlockSize)
	if err := binary.Write(&buf, binary.LittleEndian, entries); err != nil {
		return fmt.Errorf("format: encode fat: %w", err)
	}
	if _, err := t.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("format: write fat: %w", err)
	}

	// Root directory block plus the whole data region, zeroed.
	zero := make([]byte, disk.BlockSize)
	for i := 0; i < 1+dataBlocks; i++ {
		if _, err := t.Write(zero); err != nil {
			return fmt.Errorf("format: write block: %w", err)
		}
	}

	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	return nil
}
