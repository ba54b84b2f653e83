//go:build linux || darwin || freebsd || openbsd || netbsd

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

const mmapSupported = true

func mmapFile(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Graph traversal touches vectors in no particular order.
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil && err != unix.EINVAL {
		unix.Munmap(data)
		return nil, err
	}
	return data, nil
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
