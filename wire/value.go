package wire

import "github.com/embertrace/embertrace/format"

// Value is one typed numeric sample. The bit pattern travels little-endian
// at the type's natural width; Bits holds it zero- or sign-extended to 64
// bits depending on signedness.
type Value struct {
	Type format.ValueType
	Bits uint64
}

// U8Value through I64Value build samples from native Go values.

func U8Value(v uint8) Value   { return Value{Type: format.TypeU8, Bits: uint64(v)} }
func U16Value(v uint16) Value { return Value{Type: format.TypeU16, Bits: uint64(v)} }
func U32Value(v uint32) Value { return Value{Type: format.TypeU32, Bits: uint64(v)} }
func U64Value(v uint64) Value { return Value{Type: format.TypeU64, Bits: v} }
func I8Value(v int8) Value    { return Value{Type: format.TypeI8, Bits: uint64(int64(v))} }
func I16Value(v int16) Value  { return Value{Type: format.TypeI16, Bits: uint64(int64(v))} }
func I32Value(v int32) Value  { return Value{Type: format.TypeI32, Bits: uint64(int64(v))} }
func I64Value(v int64) Value  { return Value{Type: format.TypeI64, Bits: uint64(v)} }

// Uint returns the sample as an unsigned integer. Meaningful for unsigned
// types; signed types yield the two's-complement bit pattern.
func (v Value) Uint() uint64 {
	return v.Bits
}

// Int returns the sample as a signed integer, sign-extended from the wire
// width.
func (v Value) Int() int64 {
	return int64(v.Bits)
}

// Float returns the sample widened to float64, the representation trace
// counters use.
func (v Value) Float() float64 {
	if v.Type.Signed() {
		return float64(int64(v.Bits))
	}

	return float64(v.Bits)
}

func (v Value) encode(w *Writer) {
	var tmp [8]byte
	width := v.Type.Width()
	leEngine.PutUint64(tmp[:], v.Bits)
	w.WriteBytes(tmp[:width])
}

func decodeValue(r *Reader, vt format.ValueType) (Value, error) {
	width := vt.Width()
	b, err := r.ReadBytes(width)
	if err != nil {
		return Value{}, err
	}

	var bits uint64
	for i := 0; i < width; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}

	if vt.Signed() && width < 8 {
		// Sign-extend from the wire width.
		signBit := uint64(1) << (width*8 - 1)
		if bits&signBit != 0 {
			bits |= ^uint64(0) << (width * 8)
		}
	}

	return Value{Type: vt, Bits: bits}, nil
}
