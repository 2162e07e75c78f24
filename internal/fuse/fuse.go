//go:build linux
// +build linux

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
package fuse

import (
	"context"
	"os"
	"sync"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	ecsfs "github.com/tedshao/ecs150fs/internal/fs"
)

// VolumeFS exposes a mounted ECS150FS image as a read-only FUSE filesystem.
// The engine is single-threaded, so every call into it goes through mtx.
type VolumeFS struct {
	mtx  sync.Mutex
	fsys *ecsfs.FS
}

func (v *VolumeFS) Root() (fusefs.Node, error) {
	return &Dir{vol: v}, nil
}

// Dir implements both fs.Node and fs.HandleReadDirAller for the flat root.
type Dir struct {
	vol *VolumeFS
}

func (*Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	d.vol.mtx.Lock()
	defer d.vol.mtx.Unlock()

	infos, err := d.vol.fsys.List()
	if err != nil {
		return nil, err
	}
	for _, e := range infos {
		if e.Name == name {
			return File{vol: d.vol, name: e.Name, size: e.Size}, nil
		}
	}
	return nil, fuse.ENOENT
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.vol.mtx.Lock()
	defer d.vol.mtx.Unlock()

	infos, err := d.vol.fsys.List()
	if err != nil {
		return nil, err
	}

	dirEntries := make([]fuse.Dirent, len(infos))
	for i, e := range infos {
		dirEntries[i] = fuse.Dirent{
			Inode: uint64(i),
			Name:  e.Name,
			Type:  fuse.DT_File,
		}
	}
	return dirEntries, nil
}

// File implements both fs.Node and fs.HandleReader.
type File struct {
	vol  *VolumeFS
	name string
	size uint32
}

func (f File) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.size)
	a.Mtime = time.Now()
	return nil
}

func (f File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	f.vol.mtx.Lock()
	defer f.vol.mtx.Unlock()

	fd, err := f.vol.fsys.Open(f.name)
	if err != nil {
		return err
	}
	defer f.vol.fsys.Close(fd)

	size, err := f.vol.fsys.Stat(fd)
	if err != nil {
		return err
	}

	offset := req.Offset
	if offset >= int64(size) {
		// Trying to read past EOF
		resp.Data = []byte{}
		return nil
	}
	if err := f.vol.fsys.Lseek(fd, uint32(offset)); err != nil {
		return err
	}

	buf := make([]byte, req.Size)
	n, err := f.vol.fsys.Read(fd, buf)
	if err != nil {
		return err
	}

	resp.Data = buf[:n]
	return nil
}
