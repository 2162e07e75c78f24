package fs_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tedshao/ecs150fs/internal/disk"
	"github.com/tedshao/ecs150fs/internal/fs"
)

func newImage(t *testing.T, dataBlocks int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, fs.Format(path, dataBlocks))
	return path
}

func mount(t *testing.T, path string) *fs.FS {
	t.Helper()

	fsys, err := fs.Mount(path)
	require.NoError(t, err)
	return fsys
}

// pattern returns n bytes of deterministic, non-repeating-per-block content.
func pattern(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7 + i/disk.BlockSize)
	}
	return buf
}

func TestFormatGeometry(t *testing.T) {
	path := newImage(t, 8)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// [superblock][1 FAT block][root][8 data blocks]
	require.Len(t, raw, 11*disk.BlockSize)
	require.Equal(t, []byte(fs.Signature), raw[:8])

	// Reserved FAT entry 0 carries the end-of-chain sentinel.
	require.Equal(t, []byte{0xFF, 0xFF}, raw[disk.BlockSize:disk.BlockSize+2])
	require.Equal(t, []byte{0x00, 0x00}, raw[disk.BlockSize+2:disk.BlockSize+4])
}

func TestFormatBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.Error(t, fs.Format(path, 0))
	require.Error(t, fs.Format(path, fs.MaxDataBlocks+1))
	require.NoError(t, fs.Format(path, fs.MaxDataBlocks))
}

func TestMountBadSignature(t *testing.T) {
	path := newImage(t, 8)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[0] = 'X'
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = fs.Mount(path)
	require.ErrorIs(t, err, fs.ErrBadSignature)
}

func TestMountBlockCountMismatch(t *testing.T) {
	path := newImage(t, 8)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, disk.BlockSize))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = fs.Mount(path)
	require.ErrorIs(t, err, fs.ErrBlockMismatch)
}

func TestInfoFreshImage(t *testing.T) {
	fsys := mount(t, newImage(t, 1024))
	defer fsys.Umount()

	var out strings.Builder
	require.NoError(t, fsys.Info(&out))

	require.Equal(t, `FS Info:
total_blk_count=1027
fat_blk_count=1
rdir_blk=2
data_blk=3
data_blk_count=1024
fat_free_ratio=1024/1024
rdir_free_ratio=128/128
`, out.String())
}

func TestCreateShowsInInfo(t *testing.T) {
	fsys := mount(t, newImage(t, 1024))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a.txt"))

	var out strings.Builder
	require.NoError(t, fsys.Info(&out))
	require.Contains(t, out.String(), "fat_free_ratio=1023/1024\n")
	require.Contains(t, out.String(), "rdir_free_ratio=127/128\n")
}

func TestCreateValidation(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.ErrorIs(t, fsys.Create(""), fs.ErrInvalidName)
	require.ErrorIs(t, fsys.Create(strings.Repeat("x", 16)), fs.ErrInvalidName)

	require.NoError(t, fsys.Create("a.txt"))
	require.ErrorIs(t, fsys.Create("a.txt"), fs.ErrExists)
}

func TestWriteReadRoundtrip(t *testing.T) {
	fsys := mount(t, newImage(t, 1024))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a.txt"))

	fd, err := fsys.Open("a.txt")
	require.NoError(t, err)
	require.Equal(t, 0, fd)

	n, err := fsys.Write(fd, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, fsys.Close(fd))

	fd, err = fsys.Open("a.txt")
	require.NoError(t, err)
	require.Equal(t, 0, fd)

	size, err := fsys.Stat(fd)
	require.NoError(t, err)
	require.Equal(t, uint32(5), size)

	require.NoError(t, fsys.Lseek(fd, 0))

	buf := make([]byte, 10)
	n, err = fsys.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), buf[:5])

	require.NoError(t, fsys.Close(fd))
}

func TestDeleteWhileOpen(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a.txt"))

	fd, err := fsys.Open("a.txt")
	require.NoError(t, err)

	require.ErrorIs(t, fsys.Delete("a.txt"), fs.ErrFileOpen)

	require.NoError(t, fsys.Close(fd))
	require.NoError(t, fsys.Delete("a.txt"))
	require.ErrorIs(t, fsys.Delete("a.txt"), fs.ErrNotFound)

	var out strings.Builder
	require.NoError(t, fsys.Ls(&out))
	require.Equal(t, "FS Ls:\n", out.String())
}

func TestLsFormat(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a.txt"))

	fd, err := fsys.Open("a.txt")
	require.NoError(t, err)
	_, err = fsys.Write(fd, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, fsys.Close(fd))

	var out strings.Builder
	require.NoError(t, fsys.Ls(&out))
	require.Equal(t, "FS Ls:\nfile: a.txt, size: 5, data_blk: 1\n", out.String())
}

func TestDirectoryFull(t *testing.T) {
	fsys := mount(t, newImage(t, 200))
	defer fsys.Umount()

	for i := 0; i < fs.FileMaxCount; i++ {
		require.NoError(t, fsys.Create(fmt.Sprintf("file%03d", i)))
	}
	require.ErrorIs(t, fsys.Create("onemore"), fs.ErrRootFull)
}

func TestCreateOnFullFAT(t *testing.T) {
	fsys := mount(t, newImage(t, 4))
	defer fsys.Umount()

	// Three allocatable blocks (entry 0 is reserved): three empty files.
	for i := 0; i < 3; i++ {
		require.NoError(t, fsys.Create(fmt.Sprintf("f%d", i)))
	}
	require.ErrorIs(t, fsys.Create("f3"), fs.ErrDiskFull)
}

func TestFullDiskWrite(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("big"))

	fd, err := fsys.Open("big")
	require.NoError(t, err)

	// Seven allocatable data blocks back a single file at most.
	content := pattern(7 * disk.BlockSize)
	n, err := fsys.Write(fd, content)
	require.NoError(t, err)
	require.Equal(t, len(content), n)

	// The FAT is exhausted: one more byte cannot land anywhere.
	n, err = fsys.Write(fd, []byte{0x42})
	require.NoError(t, err)
	require.Equal(t, 0, n)

	size, err := fsys.Stat(fd)
	require.NoError(t, err)
	require.Equal(t, uint32(len(content)), size)

	require.NoError(t, fsys.Lseek(fd, 0))
	back := make([]byte, len(content))
	n, err = fsys.Read(fd, back)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	require.Equal(t, content, back)

	require.NoError(t, fsys.Close(fd))
}

func TestShortWriteCapping(t *testing.T) {
	fsys := mount(t, newImage(t, 4))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("big"))

	fd, err := fsys.Open("big")
	require.NoError(t, err)

	// Three blocks of capacity; asking for four caps at three.
	content := pattern(4 * disk.BlockSize)
	n, err := fsys.Write(fd, content)
	require.NoError(t, err)
	require.Equal(t, 3*disk.BlockSize, n)

	size, err := fsys.Stat(fd)
	require.NoError(t, err)
	require.Equal(t, uint32(3*disk.BlockSize), size)

	require.NoError(t, fsys.Lseek(fd, 0))
	back := make([]byte, 4*disk.BlockSize)
	n, err = fsys.Read(fd, back)
	require.NoError(t, err)
	require.Equal(t, 3*disk.BlockSize, n)
	require.Equal(t, content[:n], back[:n])

	require.NoError(t, fsys.Close(fd))
}

func TestUnalignedOverwrite(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a"))

	fd, err := fsys.Open("a")
	require.NoError(t, err)

	_, err = fsys.Write(fd, []byte("hello world"))
	require.NoError(t, err)

	require.NoError(t, fsys.Lseek(fd, 3))
	n, err := fsys.Write(fd, []byte("XY"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	want := []byte("hello world")
	copy(want[3:], "XY")

	require.NoError(t, fsys.Lseek(fd, 0))
	back := make([]byte, len(want))
	n, err = fsys.Read(fd, back)
	require.NoError(t, err)
	require.Equal(t, len(want), n)
	require.Equal(t, want, back)

	// Overwriting in the middle does not grow the file.
	size, err := fsys.Stat(fd)
	require.NoError(t, err)
	require.Equal(t, uint32(len(want)), size)

	require.NoError(t, fsys.Close(fd))
}

func TestCrossBlockReadWrite(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a"))

	fd, err := fsys.Open("a")
	require.NoError(t, err)

	content := pattern(10000) // spans three blocks
	n, err := fsys.Write(fd, content)
	require.NoError(t, err)
	require.Equal(t, len(content), n)

	// Read a window straddling the first block boundary.
	require.NoError(t, fsys.Lseek(fd, uint32(disk.BlockSize-6)))
	buf := make([]byte, 20)
	n, err = fsys.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	require.Equal(t, content[disk.BlockSize-6:disk.BlockSize+14], buf)

	// Overwrite a window straddling the second boundary and verify.
	require.NoError(t, fsys.Lseek(fd, uint32(2*disk.BlockSize-3)))
	n, err = fsys.Write(fd, []byte("123456"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	copy(content[2*disk.BlockSize-3:], "123456")

	require.NoError(t, fsys.Lseek(fd, 0))
	back := make([]byte, len(content))
	n, err = fsys.Read(fd, back)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	require.Equal(t, content, back)

	require.NoError(t, fsys.Close(fd))
}

func TestReadAtEOF(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a"))

	fd, err := fsys.Open("a")
	require.NoError(t, err)

	// A fresh file is empty: reading yields nothing and the buffer is
	// untouched.
	buf := bytes.Repeat([]byte{0xEE}, 16)
	n, err := fsys.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, bytes.Repeat([]byte{0xEE}, 16), buf)

	_, err = fsys.Write(fd, []byte("data"))
	require.NoError(t, err)

	// Seeking to the size is allowed; reading there signals end-of-file.
	require.NoError(t, fsys.Lseek(fd, 4))
	n, err = fsys.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, fsys.Close(fd))
}

func TestLseekBounds(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a"))

	fd, err := fsys.Open("a")
	require.NoError(t, err)

	_, err = fsys.Write(fd, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, fsys.Lseek(fd, 0))
	require.NoError(t, fsys.Lseek(fd, 4))
	require.ErrorIs(t, fsys.Lseek(fd, 5), fs.ErrOffsetRange)

	require.NoError(t, fsys.Close(fd))
	require.ErrorIs(t, fsys.Lseek(fd, 0), fs.ErrBadDesc)
}

func TestDescriptorValidation(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.ErrorIs(t, fsys.Close(-1), fs.ErrBadDesc)
	require.ErrorIs(t, fsys.Close(0), fs.ErrBadDesc)
	require.ErrorIs(t, fsys.Close(fs.OpenMaxCount), fs.ErrBadDesc)

	_, err := fsys.Stat(0)
	require.ErrorIs(t, err, fs.ErrBadDesc)
	_, err = fsys.Read(0, make([]byte, 4))
	require.ErrorIs(t, err, fs.ErrBadDesc)
	_, err = fsys.Write(0, make([]byte, 4))
	require.ErrorIs(t, err, fs.ErrBadDesc)
}

func TestOpenTableFull(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a"))

	fds := make([]int, 0, fs.OpenMaxCount)
	for i := 0; i < fs.OpenMaxCount; i++ {
		fd, err := fsys.Open("a")
		require.NoError(t, err)
		require.Equal(t, i, fd)
		fds = append(fds, fd)
	}

	_, err := fsys.Open("a")
	require.ErrorIs(t, err, fs.ErrTableFull)

	for _, fd := range fds {
		require.NoError(t, fsys.Close(fd))
	}

	// Close released every slot: opening works again.
	fd, err := fsys.Open("a")
	require.NoError(t, err)
	require.Equal(t, 0, fd)
	require.NoError(t, fsys.Close(fd))
}

func TestOpenMissing(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	_, err := fsys.Open("ghost")
	require.ErrorIs(t, err, fs.ErrNotFound)

	_, err = fsys.Open("")
	require.ErrorIs(t, err, fs.ErrInvalidName)
}

func TestUmountWithOpenFiles(t *testing.T) {
	fsys := mount(t, newImage(t, 8))

	require.NoError(t, fsys.Create("a"))
	fd, err := fsys.Open("a")
	require.NoError(t, err)

	require.ErrorIs(t, fsys.Umount(), fs.ErrOpenFiles)

	require.NoError(t, fsys.Close(fd))
	require.NoError(t, fsys.Umount())
}

func TestOpsAfterUmount(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	require.NoError(t, fsys.Umount())

	require.ErrorIs(t, fsys.Create("a"), fs.ErrNotMounted)
	require.ErrorIs(t, fsys.Delete("a"), fs.ErrNotMounted)
	_, err := fsys.Open("a")
	require.ErrorIs(t, err, fs.ErrNotMounted)
	require.ErrorIs(t, fsys.Info(&strings.Builder{}), fs.ErrNotMounted)
	require.ErrorIs(t, fsys.Umount(), fs.ErrNotMounted)
}

func TestRemountPersistence(t *testing.T) {
	path := newImage(t, 64)

	content := pattern(30000)

	fsys := mount(t, path)
	require.NoError(t, fsys.Create("keep.bin"))
	require.NoError(t, fsys.Create("other"))

	fd, err := fsys.Open("keep.bin")
	require.NoError(t, err)
	n, err := fsys.Write(fd, content)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	require.NoError(t, fsys.Close(fd))

	var lsBefore strings.Builder
	require.NoError(t, fsys.Ls(&lsBefore))
	require.NoError(t, fsys.Umount())

	fsys = mount(t, path)
	defer fsys.Umount()

	var lsAfter strings.Builder
	require.NoError(t, fsys.Ls(&lsAfter))
	require.Equal(t, lsBefore.String(), lsAfter.String())

	fd, err = fsys.Open("keep.bin")
	require.NoError(t, err)

	size, err := fsys.Stat(fd)
	require.NoError(t, err)
	require.Equal(t, uint32(len(content)), size)

	back := make([]byte, len(content))
	n, err = fsys.Read(fd, back)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	require.Equal(t, content, back)

	require.NoError(t, fsys.Close(fd))
}

func TestDeleteFreesBlocks(t *testing.T) {
	fsys := mount(t, newImage(t, 4))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("a"))

	fd, err := fsys.Open("a")
	require.NoError(t, err)
	n, err := fsys.Write(fd, pattern(3*disk.BlockSize))
	require.NoError(t, err)
	require.Equal(t, 3*disk.BlockSize, n)
	require.NoError(t, fsys.Close(fd))

	require.NoError(t, fsys.Delete("a"))

	var out strings.Builder
	require.NoError(t, fsys.Info(&out))
	require.Contains(t, out.String(), "fat_free_ratio=4/4\n")

	// The released chain is allocatable again.
	require.NoError(t, fsys.Create("b"))
	fd, err = fsys.Open("b")
	require.NoError(t, err)
	n, err = fsys.Write(fd, pattern(3*disk.BlockSize))
	require.NoError(t, err)
	require.Equal(t, 3*disk.BlockSize, n)
	require.NoError(t, fsys.Close(fd))
}

func TestListEntries(t *testing.T) {
	fsys := mount(t, newImage(t, 8))
	defer fsys.Umount()

	require.NoError(t, fsys.Create("b"))
	require.NoError(t, fsys.Create("a"))

	infos, err := fsys.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Directory order, not name order.
	require.Equal(t, "b", infos[0].Name)
	require.Equal(t, "a", infos[1].Name)
	require.Equal(t, uint16(1), infos[0].StartBlk)
	require.Equal(t, uint16(2), infos[1].StartBlk)
}
