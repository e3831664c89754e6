package wire

import (
	"encoding/binary"
	"errors"
)

// Mumble's control messages are protobuf-encoded. Rather than
// depending on generated, codegen-heavy message types, this package
// reads and writes the small set of fields each dispatched tag
// actually needs with a minimal field-tag reader/writer, so decoded
// messages carry only what the dispatcher reads.

// wireType identifies how a protobuf field's value is encoded.
type wireType int

const (
	wireVarint wireType = 0
	wire64bit  wireType = 1
	wireBytes  wireType = 2
	wire32bit  wireType = 5
)

// fieldReader iterates the (field number, wire type, raw value) triples
// of a protobuf-encoded message buffer.
type fieldReader struct {
	buf []byte
	pos int
}

func newFieldReader(buf []byte) *fieldReader {
	return &fieldReader{buf: buf}
}

// next returns the next field's number, wire type, and raw bytes (for
// wireBytes) or decoded integer (for wireVarint/wire64bit/wire32bit).
// ok is false once the buffer is exhausted.
func (r *fieldReader) next() (field int, wt wireType, raw []byte, num uint64, ok bool, err error) {
	if r.pos >= len(r.buf) {
		return 0, 0, nil, 0, false, nil
	}

	key, n, derr := decodeProtoVarint(r.buf[r.pos:])
	if derr != nil {
		return 0, 0, nil, 0, false, derr
	}
	r.pos += n

	field = int(key >> 3)
	wt = wireType(key & 0x7)

	switch wt {
	case wireVarint:
		v, n, derr := decodeProtoVarint(r.buf[r.pos:])
		if derr != nil {
			return 0, 0, nil, 0, false, derr
		}
		r.pos += n
		return field, wt, nil, v, true, nil

	case wire64bit:
		if r.pos+8 > len(r.buf) {
			return 0, 0, nil, 0, false, errors.New("wire: truncated 64-bit field")
		}
		v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
		r.pos += 8
		return field, wt, nil, v, true, nil

	case wireBytes:
		l, n, derr := decodeProtoVarint(r.buf[r.pos:])
		if derr != nil {
			return 0, 0, nil, 0, false, derr
		}
		r.pos += n
		if r.pos+int(l) > len(r.buf) {
			return 0, 0, nil, 0, false, errors.New("wire: truncated length-delimited field")
		}
		raw = r.buf[r.pos : r.pos+int(l)]
		r.pos += int(l)
		return field, wt, raw, 0, true, nil

	case wire32bit:
		if r.pos+4 > len(r.buf) {
			return 0, 0, nil, 0, false, errors.New("wire: truncated 32-bit field")
		}
		v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
		r.pos += 4
		return field, wt, nil, uint64(v), true, nil

	default:
		return 0, 0, nil, 0, false, errors.New("wire: unsupported wire type")
	}
}

func decodeProtoVarint(b []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(b) && i < 10; i++ {
		v |= uint64(b[i]&0x7f) << (7 * uint(i))
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("wire: truncated protobuf varint")
}

// fieldWriter accumulates protobuf-encoded fields in declaration order.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) putVarint(field int, v uint64) {
	w.buf = appendProtoVarint(w.buf, uint64(field)<<3|uint64(wireVarint))
	w.buf = appendProtoVarint(w.buf, v)
}

func (w *fieldWriter) putInt32(field int, v int32)   { w.putVarint(field, uint64(uint32(v))) }
func (w *fieldWriter) putUint32(field int, v uint32) { w.putVarint(field, uint64(v)) }
func (w *fieldWriter) putUint64(field int, v uint64) { w.putVarint(field, v) }
func (w *fieldWriter) putBool(field int, v bool) {
	if v {
		w.putVarint(field, 1)
	} else {
		w.putVarint(field, 0)
	}
}

func (w *fieldWriter) putBytes(field int, b []byte) {
	w.buf = appendProtoVarint(w.buf, uint64(field)<<3|uint64(wireBytes))
	w.buf = appendProtoVarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) putString(field int, s string) {
	if s == "" {
		return
	}
	w.putBytes(field, []byte(s))
}

func (w *fieldWriter) bytes() []byte { return w.buf }

func appendProtoVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}
