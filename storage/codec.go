package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	goMath "math"
	"os"
	"unsafe"

	"github.com/marekgalovic/hnswdb/index/space"
)

// Data stream layout, little endian:
//
//	magic[8] "HNSWDATA" | version u32 | element tag u32 | dim u64 | count u64 | vectors...
//
// The header is 32 bytes so vectors stay aligned for every element type when
// the file is mapped.
const (
	DataVersion    uint32 = 1
	DataHeaderSize        = 32
)

var dataMagic = [8]byte{'H', 'N', 'S', 'W', 'D', 'A', 'T', 'A'}

var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// CanMap reports whether data files can be mapped in place on this host.
func CanMap() bool {
	return mmapSupported && hostLittleEndian
}

type DataHeader struct {
	Version     uint32
	ElementType space.ElementType
	Dim         uint64
	Count       uint64
}

func (this DataHeader) payloadSize() (uint64, error) {
	elemSize, ok := elementSizes[this.ElementType]
	if !ok {
		return 0, fmt.Errorf("%w: unknown element type %d", ErrFormat, this.ElementType)
	}
	if this.Dim == 0 {
		return 0, fmt.Errorf("%w: zero dimension", ErrFormat)
	}
	// The whole file must stay addressable as a single mapping.
	const maxPayload = uint64(goMath.MaxInt64) - DataHeaderSize
	if this.Dim > maxPayload/elemSize {
		return 0, fmt.Errorf("%w: dimension %d out of range", ErrFormat, this.Dim)
	}
	stride := this.Dim * elemSize
	if this.Count > maxPayload/stride {
		return 0, fmt.Errorf("%w: point count %d out of range", ErrFormat, this.Count)
	}
	return this.Count * stride, nil
}

var elementSizes = map[space.ElementType]uint64{
	space.Float32Element: 4,
	space.Float64Element: 8,
	space.Int8Element:    1,
	space.Uint8Element:   1,
	space.Float16Element: 2,
}

func writeDataHeader(w io.Writer, header DataHeader) error {
	var buf [DataHeaderSize]byte
	copy(buf[:8], dataMagic[:])
	binary.LittleEndian.PutUint32(buf[8:], header.Version)
	binary.LittleEndian.PutUint32(buf[12:], uint32(header.ElementType))
	binary.LittleEndian.PutUint64(buf[16:], header.Dim)
	binary.LittleEndian.PutUint64(buf[24:], header.Count)
	_, err := w.Write(buf[:])
	return err
}

// ReadDataHeader parses and validates the fixed size header.
func ReadDataHeader(r io.Reader) (DataHeader, error) {
	var buf [DataHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return DataHeader{}, fmt.Errorf("%w: data header: %v", ErrFormat, err)
	}
	if !bytes.Equal(buf[:8], dataMagic[:]) {
		return DataHeader{}, fmt.Errorf("%w: bad data magic %q", ErrFormat, buf[:8])
	}
	header := DataHeader{
		Version:     binary.LittleEndian.Uint32(buf[8:]),
		ElementType: space.ElementType(binary.LittleEndian.Uint32(buf[12:])),
		Dim:         binary.LittleEndian.Uint64(buf[16:]),
		Count:       binary.LittleEndian.Uint64(buf[24:]),
	}
	if header.Version != DataVersion {
		return DataHeader{}, fmt.Errorf("%w: unsupported data version %d", ErrFormat, header.Version)
	}
	if _, err := header.payloadSize(); err != nil {
		return DataHeader{}, err
	}
	return header, nil
}

func checkHeader[T space.Element](header DataHeader, dim int) error {
	if want := space.ElementTypeOf[T](); header.ElementType != want {
		return fmt.Errorf("%w: element type %s, expected %s", ErrFormat, header.ElementType, want)
	}
	if dim > 0 && header.Dim != uint64(dim) {
		return fmt.Errorf("%w: dimension %d, expected %d", ErrFormat, header.Dim, dim)
	}
	return nil
}

// WriteData writes the first count points of the store.
func WriteData[T space.Element](w io.Writer, points Points[T], count uint64) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	header := DataHeader{
		Version:     DataVersion,
		ElementType: space.ElementTypeOf[T](),
		Dim:         uint64(points.Dim()),
		Count:       count,
	}
	if err := writeDataHeader(bw, header); err != nil {
		return err
	}
	for id := uint64(0); id < count; id++ {
		if err := binary.Write(bw, binary.LittleEndian, points.Get(id)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadData loads at most maxCount points (all of them when maxCount is negative)
// into a resident store. dim of 0 accepts whatever the header declares.
func ReadData[T space.Element](r io.Reader, dim int, maxCount int64, limit uint64) (*MemoryPoints[T], error) {
	br := bufio.NewReaderSize(r, 1<<20)
	header, err := ReadDataHeader(br)
	if err != nil {
		return nil, err
	}
	if err := checkHeader[T](header, dim); err != nil {
		return nil, err
	}
	count := header.Count
	if maxCount >= 0 {
		if uint64(maxCount) > count {
			return nil, fmt.Errorf("%w: data holds %d points, %d required", ErrFormat, count, maxCount)
		}
		count = uint64(maxCount)
	}
	if limit > 0 && count > limit {
		return nil, ErrCapacityExceeded
	}

	points := NewMemoryPoints[T](int(header.Dim), limit)
	vec := make([]T, header.Dim)
	for i := uint64(0); i < count; i++ {
		if err := binary.Read(br, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: vector %d: %v", ErrFormat, i, err)
		}
		if _, err := points.Append(vec); err != nil {
			return nil, err
		}
	}
	return points, nil
}

// OpenMapped maps a data file read-only. Use CanMap to check support first.
func OpenMapped[T space.Element](path string, dim int, limit uint64) (*MappedPoints[T], error) {
	if !hostLittleEndian {
		return nil, ErrMmapUnsupported
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := ReadDataHeader(f)
	if err != nil {
		return nil, err
	}
	if err := checkHeader[T](header, dim); err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	payload, _ := header.payloadSize()
	if size := uint64(stat.Size()); size < DataHeaderSize || size-DataHeaderSize < payload {
		return nil, fmt.Errorf("%w: data file truncated, %d bytes for %d points", ErrFormat, stat.Size(), header.Count)
	}

	points := &MappedPoints[T]{
		dim:   int(header.Dim),
		path:  path,
		count: header.Count,
		limit: limit,
	}
	if header.Count > 0 {
		data, err := mmapFile(f, int(DataHeaderSize+payload))
		if err != nil {
			return nil, err
		}
		points.data = data
		points.view = unsafe.Slice((*T)(unsafe.Pointer(&data[DataHeaderSize])), header.Count*header.Dim)
	}
	points.resetOverflow()
	return points, nil
}
