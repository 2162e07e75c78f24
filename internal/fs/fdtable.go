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

// OpenMaxCount is the size of the open-file table.
const OpenMaxCount = 32

// openFile binds a descriptor to a root-directory entry by index, with a
// per-descriptor byte offset. Holding the index rather than a pointer keeps
// the table a plain value type and survives directory-block rewrites.
type openFile struct {
	dirIndex int // -1 when the slot is free
	offset   uint32
}

// fdTable is the in-memory open-file table. A descriptor is live iff its
// slot holds a directory index.
type fdTable struct {
	slots [OpenMaxCount]openFile
	open  int
}

func (t *fdTable) reset() {
	for i := range t.slots {
		t.slots[i] = openFile{dirIndex: -1}
	}
	t.open = 0
}

// firstFree returns the lowest free slot, or -1 when the table is full.
func (t *fdTable) firstFree() int {
	for i := range t.slots {
		if t.slots[i].dirIndex < 0 {
			return i
		}
	}
	return -1
}

// valid reports whether fd names a live descriptor.
func (t *fdTable) valid(fd int) bool {
	return fd >= 0 && fd < OpenMaxCount && t.slots[fd].dirIndex >= 0
}

// references reports whether any live descriptor is bound to the given
// root-directory entry.
func (t *fdTable) references(dirIndex int) bool {
	for i := range t.slots {
		if t.slots[i].dirIndex == dirIndex {
			return true
		}
	}
	return false
}
