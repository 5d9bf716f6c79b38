package wire

import "github.com/embertrace/embertrace/endian"

// Time deltas are unsigned microsecond intervals between consecutive events.
// Two formats share the wire, distinguished by the high bit of the first
// byte:
//
//   - short:    15 bits, high bit 0, 2 bytes big-endian
//   - extended: 31 bits, high bit 1, 4 bytes big-endian
//
// On real targets ~93% of intervals fit the short form (~32ms); the
// extended form bounds precision loss across long idle stretches. Deltas
// that do not fit 31 bits are clamped to MaxTimeDelta on encode.
const (
	// MaxShortDelta is the largest delta the 2-byte format can carry.
	MaxShortDelta = 1<<15 - 1
	// MaxTimeDelta is the encode-side clamp for the 4-byte format.
	MaxTimeDelta = 1<<31 - 1

	extendedFlag16 = 0x80
	extendedBit32  = 0x8000_0000
)

var beEngine = endian.GetBigEndianEngine()

// IsExtendedDelta reports whether delta needs the 4-byte format.
func IsExtendedDelta(delta uint32) bool {
	return delta > MaxShortDelta
}

// WriteTimeDelta encodes delta into w using the shortest format that fits.
func WriteTimeDelta(w *Writer, delta uint32) {
	if IsExtendedDelta(delta) {
		if delta > MaxTimeDelta {
			delta = MaxTimeDelta
		}
		var tmp [4]byte
		beEngine.PutUint32(tmp[:], delta|extendedBit32)
		w.WriteBytes(tmp[:])

		return
	}

	var tmp [2]byte
	beEngine.PutUint16(tmp[:], uint16(delta))
	w.WriteBytes(tmp[:])
}

// AppendTimeDelta appends the encoded delta to dst and returns the extended
// slice. Used where the caller accumulates records outside the fixed event
// buffer.
func AppendTimeDelta(dst []byte, delta uint32) []byte {
	if IsExtendedDelta(delta) {
		if delta > MaxTimeDelta {
			delta = MaxTimeDelta
		}

		return beEngine.AppendUint32(dst, delta|extendedBit32)
	}

	return beEngine.AppendUint16(dst, uint16(delta))
}

// ReadTimeDelta decodes a delta from r, detecting the format from the high
// bit of the first byte. Returns errs.ErrTruncatedInput when fewer bytes are
// available than the detected format requires.
func ReadTimeDelta(r *Reader) (uint32, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	second, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	if first&extendedFlag16 == 0 {
		return uint32(first)<<8 | uint32(second), nil
	}

	rest, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	v := uint32(first)<<24 | uint32(second)<<16 | uint32(rest[0])<<8 | uint32(rest[1])

	return v &^ extendedBit32, nil
}
