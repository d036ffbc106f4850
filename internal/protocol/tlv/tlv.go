// Package tlv is the record framing used inside bundle payloads: a 2-byte
// field id, 1-byte type and 4-byte length, all big-endian, then the value.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrFieldTooLarge    = errors.New("tlv: field too large")
	ErrTypeMismatch     = errors.New("tlv: type mismatch")
)

const (
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

// Append encodes f onto dst.
func Append(dst []byte, f Field) ([]byte, error) {
	if uint64(len(f.Value)) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: field %d has %d bytes", ErrFieldTooLarge, f.ID, len(f.Value))
	}
	dst = binary.BigEndian.AppendUint16(dst, f.ID)
	dst = append(dst, f.Type)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(f.Value)))
	return append(dst, f.Value...), nil
}

func String(id uint16, s string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(s)}
}

func Bytes(id uint16, b []byte) Field {
	return Field{ID: id, Type: TypeBytes, Value: b}
}

func U32(id uint16, v uint32) Field {
	return Field{ID: id, Type: TypeU32, Value: binary.BigEndian.AppendUint32(nil, v)}
}

func U64(id uint16, v uint64) Field {
	return Field{ID: id, Type: TypeU64, Value: binary.BigEndian.AppendUint64(nil, v)}
}

// Reader walks the fields of a payload without copying values.
type Reader struct {
	buf []byte
	off int
}

func NewReader(payload []byte) *Reader {
	return &Reader{buf: payload}
}

func (r *Reader) More() bool { return r.off < len(r.buf) }

// Offset is the byte position of the next field.
func (r *Reader) Offset() int { return r.off }

// Next returns the next field. Value aliases the payload.
func (r *Reader) Next() (Field, error) {
	rest := r.buf[r.off:]
	if len(rest) < HeaderLen {
		return Field{}, fmt.Errorf("%w at offset %d", ErrShortFieldHeader, r.off)
	}
	l := binary.BigEndian.Uint32(rest[3:7])
	if uint64(len(rest)-HeaderLen) < uint64(l) {
		return Field{}, fmt.Errorf("%w at offset %d: need %d, have %d", ErrShortFieldValue, r.off, l, len(rest)-HeaderLen)
	}
	f := Field{
		ID:    binary.BigEndian.Uint16(rest[0:2]),
		Type:  rest[2],
		Value: rest[HeaderLen : HeaderLen+int(l)],
	}
	r.off += HeaderLen + int(l)
	return f, nil
}

// Expect reads the next field and checks its id and type.
func (r *Reader) Expect(id uint16, typ uint8) (Field, error) {
	f, err := r.Next()
	if err != nil {
		return Field{}, err
	}
	if f.ID != id || f.Type != typ {
		return Field{}, fmt.Errorf("%w: got field %d type %d, want field %d type %d", ErrTypeMismatch, f.ID, f.Type, id, typ)
	}
	return f, nil
}

func (f Field) U32() (uint32, error) {
	if f.Type != TypeU32 || len(f.Value) != 4 {
		return 0, fmt.Errorf("%w: field %d is not u32", ErrTypeMismatch, f.ID)
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

func (f Field) U64() (uint64, error) {
	if f.Type != TypeU64 || len(f.Value) != 8 {
		return 0, fmt.Errorf("%w: field %d is not u64", ErrTypeMismatch, f.ID)
	}
	return binary.BigEndian.Uint64(f.Value), nil
}
