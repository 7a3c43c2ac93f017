package mp4io

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

func box(tag string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	pio.PutU32BE(b, uint32(len(b)))
	copy(b[4:], tag)
	copy(b[8:], payload)
	return b
}

func moovBytes(t *testing.T) []byte {
	t.Helper()
	return marshalAtom(t, testMovie())
}

func TestScannerMoovInOneAppend(t *testing.T) {
	file := append(box("ftyp", []byte("isom\x00\x00\x02\x00")), moovBytes(t)...)

	s := NewScanner()
	ev, err := s.Append(file, 0)
	require.NoError(t, err)
	require.NotNil(t, ev.Movie)
	require.Equal(t, uint32(1000), ev.Movie.Header.TimeScale)
}

// Feeds the file seven bytes at a time, honoring skip requests the way the
// demuxer does, and expects the moov only once its last byte arrived.
func TestScannerBuffersSplitMoov(t *testing.T) {
	file := append(box("ftyp", []byte("isom\x00\x00\x02\x00")), moovBytes(t)...)

	s := NewScanner()
	var pos int64
	for pos < int64(len(file)) {
		end := pos + 7
		if end > int64(len(file)) {
			end = int64(len(file))
		}
		ev, err := s.Append(file[pos:end], pos)
		require.NoError(t, err)

		if ev.Movie != nil {
			require.Equal(t, int64(len(file)), end)
			require.Equal(t, uint32(1000), ev.Movie.Header.TimeScale)
			return
		}
		if ev.NextOffset > 0 {
			pos = ev.NextOffset
			continue
		}
		pos = end
	}
	t.Fatal("moov never materialized")
}

func TestScannerSkipsLeadingBox(t *testing.T) {
	ftyp := box("ftyp", []byte("isom\x00\x00\x02\x00"))
	mdatHeader := make([]byte, 8)
	pio.PutU32BE(mdatHeader, 1<<20)
	copy(mdatHeader[4:], "mdat")
	moov := moovBytes(t)

	s := NewScanner()
	ev, err := s.Append(append(ftyp, mdatHeader...), 0)
	require.NoError(t, err)
	require.Nil(t, ev.Movie)
	skipTo := int64(len(ftyp)) + 1<<20
	require.Equal(t, skipTo, ev.NextOffset)

	// Feeding anywhere but the requested offset is rejected.
	_, err = s.Append(moov, skipTo+1)
	require.Error(t, err)

	s = NewScanner()
	_, err = s.Append(append(ftyp, mdatHeader...), 0)
	require.NoError(t, err)
	ev, err = s.Append(moov, skipTo)
	require.NoError(t, err)
	require.NotNil(t, ev.Movie)
}

func TestScannerLargeSizeBox(t *testing.T) {
	hdr := make([]byte, 16)
	pio.PutU32BE(hdr, 1)
	copy(hdr[4:], "mdat")
	pio.PutU64BE(hdr[8:], 5<<30)

	s := NewScanner()
	ev, err := s.Append(hdr, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5<<30), ev.NextOffset)
}

func TestScannerZeroSizeBox(t *testing.T) {
	hdr := make([]byte, 8)
	copy(hdr[4:], "mdat")

	s := NewScanner()
	ev, err := s.Append(hdr, 0)
	require.NoError(t, err)
	require.True(t, ev.Done)
}

// A moov with a 16-byte largesize header parses the same as the compact
// form.
func TestScannerLargeSizeMoov(t *testing.T) {
	moov := moovBytes(t)
	big := make([]byte, 16+len(moov)-8)
	pio.PutU32BE(big, 1)
	copy(big[4:], "moov")
	pio.PutU64BE(big[8:], uint64(len(big)))
	copy(big[16:], moov[8:])

	s := NewScanner()
	ev, err := s.Append(big, 0)
	require.NoError(t, err)
	require.NotNil(t, ev.Movie)
	require.Equal(t, uint32(1000), ev.Movie.Header.TimeScale)
}

// A size-0 moov extends to end of file, so it only parses on Finish.
func TestScannerMoovToEOF(t *testing.T) {
	moov := moovBytes(t)
	pio.PutU32BE(moov, 0)
	file := append(box("ftyp", []byte("isom\x00\x00\x02\x00")), moov...)

	s := NewScanner()
	ev, err := s.Append(file, 0)
	require.NoError(t, err)
	require.Nil(t, ev.Movie)
	require.False(t, ev.Done)

	ev, err = s.Finish()
	require.NoError(t, err)
	require.NotNil(t, ev.Movie)
	require.Equal(t, uint32(1000), ev.Movie.Header.TimeScale)
}

func TestScannerFinishWithoutMoov(t *testing.T) {
	s := NewScanner()
	_, err := s.Append(box("free", nil), 0)
	require.NoError(t, err)

	ev, err := s.Finish()
	require.NoError(t, err)
	require.Nil(t, ev.Movie)
}

func TestScannerRejectsBadSize(t *testing.T) {
	hdr := make([]byte, 8)
	pio.PutU32BE(hdr, 3)
	copy(hdr[4:], "free")

	s := NewScanner()
	_, err := s.Append(hdr, 0)
	require.Error(t, err)
}

func TestScannerRejectsGap(t *testing.T) {
	s := NewScanner()
	_, err := s.Append(box("free", nil), 0)
	require.NoError(t, err)
	_, err = s.Append(box("free", nil), 100)
	require.Error(t, err)
}

func TestScannerRejectsHugeMoov(t *testing.T) {
	hdr := make([]byte, 8)
	pio.PutU32BE(hdr, uint32(MaxMovieSize+1))
	copy(hdr[4:], "moov")

	s := NewScanner()
	_, err := s.Append(hdr, 0)
	require.Error(t, err)
}
