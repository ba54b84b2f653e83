package commands

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Each fvecs record is a little endian int32 dimension followed by that many float32 values.

func readFvecs(r io.Reader, limit int) ([][]float32, error) {
	reader := bufio.NewReader(r)
	vectors := make([][]float32, 0)
	for limit <= 0 || len(vectors) < limit {
		var dim int32
		if err := binary.Read(reader, binary.LittleEndian, &dim); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if dim <= 0 {
			return nil, fmt.Errorf("Invalid fvecs record %d: dimension %d", len(vectors), dim)
		}
		if len(vectors) > 0 && int(dim) != len(vectors[0]) {
			return nil, fmt.Errorf("Invalid fvecs record %d: dimension %d, expected %d", len(vectors), dim, len(vectors[0]))
		}

		vector := make([]float32, dim)
		if err := binary.Read(reader, binary.LittleEndian, vector); err != nil {
			return nil, fmt.Errorf("Invalid fvecs record %d: %w", len(vectors), err)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

func readFvecsFile(path string, limit int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readFvecs(f, limit)
}
