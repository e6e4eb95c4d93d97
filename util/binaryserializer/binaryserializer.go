package binaryserializer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxItems is the number of buffers to keep in the free
// list to use for binary serialization and deserialization.
const maxItems = 1024

// binaryFreeList is a concurrent safe free list of 8-byte buffers used to
// avoid an allocation per primitive read or write.
var binaryFreeList = make(chan []byte, maxItems)

// Borrow returns a byte slice from the free list with a length of 8. A new
// buffer is allocated if there are not any available on the free list.
func Borrow() []byte {
	var buf []byte
	select {
	case buf = <-binaryFreeList:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

// Return puts the provided byte slice back on the free list. The buffer MUST
// have been obtained via the Borrow function and therefore have a cap of 8.
func Return(buf []byte) {
	select {
	case binaryFreeList <- buf:
	default:
		// Let it go to the garbage collector.
	}
}

// Uint8 reads a single byte from the provided reader.
func Uint8(r io.Reader) (uint8, error) {
	buf := Borrow()[:1]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return buf[0], nil
}

// Uint16 reads two bytes from r and decodes them using order.
func Uint16(r io.Reader, order binary.ByteOrder) (uint16, error) {
	buf := Borrow()[:2]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return order.Uint16(buf), nil
}

// Uint32 reads four bytes from r and decodes them using order.
func Uint32(r io.Reader, order binary.ByteOrder) (uint32, error) {
	buf := Borrow()[:4]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return order.Uint32(buf), nil
}

// Uint64 reads eight bytes from r and decodes them using order.
func Uint64(r io.Reader, order binary.ByteOrder) (uint64, error) {
	buf := Borrow()[:8]
	defer Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return order.Uint64(buf), nil
}

// PutUint8 writes val to w as a single byte.
func PutUint8(w io.Writer, val uint8) error {
	buf := Borrow()[:1]
	defer Return(buf)
	buf[0] = val
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// PutUint16 encodes val using order and writes the two bytes to w.
func PutUint16(w io.Writer, order binary.ByteOrder, val uint16) error {
	buf := Borrow()[:2]
	defer Return(buf)
	order.PutUint16(buf, val)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// PutUint32 encodes val using order and writes the four bytes to w.
func PutUint32(w io.Writer, order binary.ByteOrder, val uint32) error {
	buf := Borrow()[:4]
	defer Return(buf)
	order.PutUint32(buf, val)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// PutUint64 encodes val using order and writes the eight bytes to w.
func PutUint64(w io.Writer, order binary.ByteOrder, val uint64) error {
	buf := Borrow()[:8]
	defer Return(buf)
	order.PutUint64(buf, val)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}
