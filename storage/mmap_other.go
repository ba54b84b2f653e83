//go:build !(linux || darwin || freebsd || openbsd || netbsd)

package storage

import (
	"os"
)

const mmapSupported = false

func mmapFile(f *os.File, size int) ([]byte, error) {
	return nil, ErrMmapUnsupported
}

func munmap(data []byte) error {
	return nil
}
