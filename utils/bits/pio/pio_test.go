package pio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsignedRoundTrip(t *testing.T) {
	b := make([]byte, 8)

	PutU8(b, 0xfe)
	require.Equal(t, uint8(0xfe), U8(b))

	PutU16BE(b, 0xcafe)
	require.Equal(t, uint16(0xcafe), U16BE(b))

	PutU24BE(b, 0xaabbcc)
	require.Equal(t, uint32(0xaabbcc), U24BE(b))

	PutU32BE(b, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), U32BE(b))

	PutU40BE(b, 0x01_dead_beef_02)
	require.Equal(t, uint64(0x01_dead_beef_02), U40BE(b))

	PutU64BE(b, 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), U64BE(b))
}

func TestSignedRoundTrip(t *testing.T) {
	b := make([]byte, 8)

	PutI8(b, -1)
	require.Equal(t, int8(-1), I8(b))

	PutI16BE(b, -12345)
	require.Equal(t, int16(-12345), I16BE(b))

	PutI24BE(b, -(1 << 22))
	require.Equal(t, int32(-(1 << 22)), I24BE(b))

	PutI32BE(b, -123456789)
	require.Equal(t, int32(-123456789), I32BE(b))

	PutI64BE(b, -(1 << 40))
	require.Equal(t, int64(-(1<<40)), I64BE(b))
}

func TestByteOrder(t *testing.T) {
	b := make([]byte, 4)
	PutU32BE(b, 0x01020304)
	require.Equal(t, []byte{1, 2, 3, 4}, b)
}
