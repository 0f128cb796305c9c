//go:build unix

package assets

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps path read-only. The descriptor is closed right away; the
// mapping stays valid until the Blob is closed.
func mapFile(path string) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	size := info.Size()
	if size == 0 {
		return NewBlob(nil, nil), nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("%s is too large to map: %d bytes", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return NewBlob(data, func() error {
		return unix.Munmap(data)
	}), nil
}
