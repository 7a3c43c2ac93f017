// Package pio
// Big-endian byte slice get/put helpers shared by the container parsers.
package pio

var RecommendBufioSize = 1024 * 64

func U8(b []byte) uint8 {
	return b[0]
}

func U16BE(b []byte) (i uint16) {
	i = uint16(b[0])
	i <<= 8
	i |= uint16(b[1])
	return
}

func U24BE(b []byte) (i uint32) {
	i = uint32(b[0])
	i <<= 8
	i |= uint32(b[1])
	i <<= 8
	i |= uint32(b[2])
	return
}

func U32BE(b []byte) (i uint32) {
	i = uint32(b[0])
	i <<= 8
	i |= uint32(b[1])
	i <<= 8
	i |= uint32(b[2])
	i <<= 8
	i |= uint32(b[3])
	return
}

func U40BE(b []byte) (i uint64) {
	i = uint64(b[0])
	i <<= 32
	i |= uint64(U32BE(b[1:]))
	return
}

func U64BE(b []byte) (i uint64) {
	i = uint64(U32BE(b))
	i <<= 32
	i |= uint64(U32BE(b[4:]))
	return
}

func I8(b []byte) int8 {
	return int8(b[0])
}

func I16BE(b []byte) int16 {
	return int16(U16BE(b))
}

func I24BE(b []byte) (i int32) {
	u := U24BE(b)
	if u&0x800000 != 0 {
		u |= 0xff000000
	}
	return int32(u)
}

func I32BE(b []byte) int32 {
	return int32(U32BE(b))
}

func I64BE(b []byte) int64 {
	return int64(U64BE(b))
}

func PutU8(b []byte, v uint8) {
	b[0] = v
}

func PutI8(b []byte, v int8) {
	b[0] = uint8(v)
}

func PutU16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func PutI16BE(b []byte, v int16) {
	PutU16BE(b, uint16(v))
}

func PutU24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func PutI24BE(b []byte, v int32) {
	PutU24BE(b, uint32(v))
}

func PutU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func PutI32BE(b []byte, v int32) {
	PutU32BE(b, uint32(v))
}

func PutU40BE(b []byte, v uint64) {
	b[0] = byte(v >> 32)
	PutU32BE(b[1:], uint32(v))
}

func PutU64BE(b []byte, v uint64) {
	PutU32BE(b, uint32(v>>32))
	PutU32BE(b[4:], uint32(v))
}

func PutI64BE(b []byte, v int64) {
	PutU64BE(b, uint64(v))
}
