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

// Filesystem signature stored in the first eight bytes of block 0.
const Signature = "ECS150FS"

const (
	signatureSize     = 8
	superblockPadding = 4079
)

// superblock is the on-disk layout of block 0. All multi-byte fields are
// little-endian and the struct is packed: its encoded size is exactly one
// block.
type superblock struct {
	Signature     [signatureSize]byte
	TotalBlkCount uint16 // number of blocks on the disk, block 0 included
	RootBlkIndex  uint16
	DataBlkIndex  uint16 // index of the first data block
	DataBlkCount  uint16
	FatBlkCount   uint8
	Padding       [superblockPadding]byte
}

// readSuperblockFrom decodes and validates a superblock from one raw block.
func readSuperblockFrom(data []byte) (*superblock, error) {
	if len(data) != disk.BlockSize {
		return nil, fmt.Errorf("superblock: input size mismatch: expected %d bytes, got %d bytes",
			disk.BlockSize, len(data))
	}

	var sb superblock
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &sb); err != nil {
		return nil, fmt.Errorf("superblock: decode: %w", err)
	}

	if string(sb.Signature[:]) != Signature {
		return nil, ErrBadSignature
	}

	if sb.RootBlkIndex != 1+uint16(sb.FatBlkCount) ||
		sb.DataBlkIndex != sb.RootBlkIndex+1 ||
		sb.TotalBlkCount != sb.DataBlkIndex+sb.DataBlkCount {
		return nil, fmt.Errorf("superblock: inconsistent geometry (total=%d fat=%d root=%d data=%d count=%d)",
			sb.TotalBlkCount, sb.FatBlkCount, sb.RootBlkIndex, sb.DataBlkIndex, sb.DataBlkCount)
	}
	return &sb, nil
}

// appendTo encodes the superblock into one raw block. The padding area is
// written as zeroes regardless of what a previous decode carried.
func (sb *superblock) appendTo(buf *bytes.Buffer) error {
	out := *sb
	out.Padding = [superblockPadding]byte{}
	return binary.Write(buf, binary.LittleEndian, &out)
}

// encode returns the block-0 image of the superblock.
func (sb *superblock) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(disk.BlockSize)
	if err := sb.appendTo(&buf); err != nil {
		return nil, fmt.Errorf("superblock: encode: %w", err)
	}
	return buf.Bytes(), nil
}
