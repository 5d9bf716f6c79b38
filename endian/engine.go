// Package endian provides byte order utilities for the wire codec.
//
// It combines the ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single EndianEngine interface so encoders can both
// read fixed offsets and append without an intermediate scratch buffer.
//
// The tracing protocol mixes byte orders deliberately: time deltas travel
// big-endian so the format bit lands in the first byte on the wire, while
// event payload fields travel little-endian to match the target CPUs.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
//
// binary.LittleEndian and binary.BigEndian both satisfy it, so values of
// this type interoperate with any standard-library binary code.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine used for event
// payload fields.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine used for time deltas.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
