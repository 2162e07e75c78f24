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

	"github.com/tedshao/ecs150fs/internal/disk"
)

// FatEOC is the end-of-chain marker. FAT entry 0 holds this value
// permanently; it is the reserved sentinel, never part of a chain.
const FatEOC = 0xFFFF

// fatEntriesPerBlock is how many 16-bit entries one FAT block holds.
const fatEntriesPerBlock = disk.BlockSize / 2

// fat is the in-memory File Allocation Table: one 16-bit entry per data
// block, forming singly linked chains. An entry is 0 when free, FatEOC at
// the end of a chain, and otherwise the index of the next block.
//
// entries spans every FAT block in full (fat_blk_count * 2048 entries); only
// the first count entries address real data blocks, and all scans are
// bounded by count.
type fat struct {
	entries []uint16
	count   int
}

// loadFAT reads every FAT block off the disk into one contiguous array.
func loadFAT(dev *disk.Disk, sb *superblock) (*fat, error) {
	entries := make([]uint16, int(sb.FatBlkCount)*fatEntriesPerBlock)

	block := make([]byte, disk.BlockSize)
	for i := 0; i < int(sb.FatBlkCount); i++ {
		if err := dev.Read(1+i, block); err != nil {
			return nil, err
		}
		chunk := entries[i*fatEntriesPerBlock : (i+1)*fatEntriesPerBlock]
		if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, chunk); err != nil {
			return nil, fmt.Errorf("fat: decode block %d: %w", 1+i, err)
		}
	}

	if entries[0] != FatEOC {
		return nil, fmt.Errorf("fat: reserved entry 0 holds %#04x, want %#04x", entries[0], uint16(FatEOC))
	}

	return &fat{
		entries: entries,
		count:   int(sb.DataBlkCount),
	}, nil
}

// flush writes every FAT block back to the disk.
func (f *fat) flush(dev *disk.Disk) error {
	nblocks := len(f.entries) / fatEntriesPerBlock
	for i := 0; i < nblocks; i++ {
		var buf bytes.Buffer
		buf.Grow(disk.BlockSize)

		chunk := f.entries[i*fatEntriesPerBlock : (i+1)*fatEntriesPerBlock]
		if err := binary.Write(&buf, binary.LittleEndian, chunk); err != nil {
			return fmt.Errorf("fat: encode block %d: %w", 1+i, err)
		}
		if err := dev.Write(1+i, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// findFree returns the index of the first free entry strictly after start,
// or false when every entry through the data-block bound is taken. Starting
// past start keeps chain extension from handing back its own tail.
func (f *fat) findFree(start int) (int, bool) {
	for i := start + 1; i < f.count; i++ {
		if f.entries[i] == 0 {
			return i, true
		}
	}
	return 0, false
}

// extend grows the chain ending at tail by one block and returns the new
// tail. When the table is full it reports false and leaves every entry
// untouched.
func (f *fat) extend(tail int) (int, bool) {
	next, ok := f.findFree(tail)
	if !ok {
		return 0, false
	}
	f.entries[tail] = uint16(next)
	f.entries[next] = FatEOC
	return next, true
}

// releaseChain frees every entry of the chain starting at start.
func (f *fat) releaseChain(start uint16) {
	cur := start
	for cur != FatEOC {
		next := f.entries[cur]
		f.entries[cur] = 0
		cur = next
	}
}

// walk follows steps links from start. The chain must hold at least
// steps+1 entries.
func (f *fat) walk(start uint16, steps int) uint16 {
	cur := start
	for ; steps > 0; steps-- {
		cur = f.entries[cur]
	}
	return cur
}

// next returns the successor of blk in its chain (FatEOC at the tail).
func (f *fat) next(blk uint16) uint16 {
	return f.entries[blk]
}

// chainLen returns the number of blocks in the chain starting at start.
func (f *fat) chainLen(start uint16) int {
	n := 0
	for cur := start; cur != FatEOC; cur = f.entries[cur] {
		n++
	}
	return n
}

// truncChain shortens the chain starting at start to exactly keep blocks,
// releasing the rest. keep must be at least 1 and no longer than the chain.
func (f *fat) truncChain(start uint16, keep int) {
	tail := f.walk(start, keep-1)
	rest := f.entries[tail]
	f.entries[tail] = FatEOC
	if rest != FatEOC {
		f.releaseChain(rest)
	}
}

// free returns the number of entries not held by any chain. The reserved
// entry 0 never joins a chain, so it counts toward the free side of the
// ratio even though it is not allocatable.
func (f *fat) free() int {
	n := 1
	for i := 1; i < f.count; i++ {
		if f.entries[i] == 0 {
			n++
		}
	}
	return n
}
