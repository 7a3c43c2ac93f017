package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teocci/go-mp4-demux/av"
	"github.com/teocci/go-mp4-demux/format/mp4/mp4io"
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

// countingSource tracks how many payload bytes Load actually pulled.
type countingSource struct {
	av.Source
	n *int64
}

func (cs countingSource) Read(p []byte) (int, error) {
	n, err := cs.Source.Read(p)
	*cs.n += int64(n)
	return n, err
}

func (cs countingSource) SliceFrom(offset int64) (av.Source, error) {
	s, err := cs.Source.SliceFrom(offset)
	if err != nil {
		return nil, err
	}
	return countingSource{Source: s, n: cs.n}, nil
}

func loadFixture(t *testing.T, opts fixtureOpts) *Demuxer {
	t.Helper()
	d := NewDemuxer(av.NewBufferSource(buildFixtureMP4(t, opts)))
	_, err := d.Load()
	require.NoError(t, err)
	return d
}

func withChunkSize(t *testing.T, size int) {
	t.Helper()
	saved := LoadChunkSize
	LoadChunkSize = size
	t.Cleanup(func() { LoadChunkSize = saved })
}

func TestLoadMetadata(t *testing.T) {
	d := loadFixture(t, fixtureOpts{})
	meta := d.Metadata()
	require.NotNil(t, meta)
	require.InDelta(t, 10.0, meta.Duration, 1e-9)

	require.NotNil(t, meta.Video)
	require.Equal(t, "avc1", meta.Video.Codec)
	require.Equal(t, 640, meta.Video.Width)
	require.Equal(t, 360, meta.Video.Height)
	require.InDelta(t, 30.0, meta.Video.FrameRate, 1e-9)
	require.Equal(t, fixtureAVCC, meta.Video.Config)

	require.NotNil(t, meta.Audio)
	require.Equal(t, "mp4a", meta.Audio.Codec)
	require.Equal(t, 48000, meta.Audio.SampleRate)
	require.Equal(t, 2, meta.Audio.ChannelCount)
}

func TestLoadIdempotent(t *testing.T) {
	d := loadFixture(t, fixtureOpts{})
	first := d.Metadata()
	meta, err := d.Load()
	require.NoError(t, err)
	require.Same(t, first, meta)
}

func TestLoadVideoOnly(t *testing.T) {
	d := loadFixture(t, fixtureOpts{videoOnly: true})
	meta := d.Metadata()
	require.NotNil(t, meta.Video)
	require.Nil(t, meta.Audio)
}

func TestLoadSkipsLeadingMdat(t *testing.T) {
	withChunkSize(t, 512)

	file := buildFixtureMP4(t, fixtureOpts{})
	var read int64
	src := countingSource{Source: av.NewBufferSource(file), n: &read}

	d := NewDemuxer(src)
	meta, err := d.Load()
	require.NoError(t, err)
	require.NotNil(t, meta.Video)
	require.Less(t, read, int64(len(file)), "mdat payload should be jumped over, not read")
}

func TestLoadStopsAtTrailingMoov(t *testing.T) {
	withChunkSize(t, 512)

	file := buildFixtureMP4(t, fixtureOpts{moovFirst: true})
	var read int64
	src := countingSource{Source: av.NewBufferSource(file), n: &read}

	d := NewDemuxer(src)
	meta, err := d.Load()
	require.NoError(t, err)
	require.NotNil(t, meta.Video)
	require.Less(t, read, int64(len(file)), "reading should stop once moov is parsed")
}

func TestLoadTruncatedFile(t *testing.T) {
	// The mdat claims a megabyte but the file ends right after its header,
	// so the metadata can never arrive.
	file := fixtureFtyp()
	hdr := make([]byte, 8)
	pio.PutU32BE(hdr, 1<<20)
	copy(hdr[4:], "mdat")
	file = append(file, hdr...)

	d := NewDemuxer(av.NewBufferSource(file))
	_, err := d.Load()
	require.ErrorIs(t, err, ErrInvalidContainer)
}

// Writers that stream the moov last sometimes leave its size field zero,
// meaning "to end of file". Load resolves it once the source is exhausted.
func TestLoadMoovSizeZero(t *testing.T) {
	file := buildFixtureMP4(t, fixtureOpts{})
	moovLen := buildFixtureMoov(make([]uint64, fixtureChunkRounds), make([]uint64, fixtureChunkRounds)).Len()
	moovStart := len(file) - moovLen
	require.Equal(t, "moov", string(file[moovStart+4:moovStart+8]))
	pio.PutU32BE(file[moovStart:], 0)

	d := NewDemuxer(av.NewBufferSource(file))
	meta, err := d.Load()
	require.NoError(t, err)
	require.NotNil(t, meta.Video)
	require.NotNil(t, meta.Audio)
}

func TestLoadNoMoov(t *testing.T) {
	file := fixtureFtyp()
	file = append(file, box("free", make([]byte, 32))...)

	d := NewDemuxer(av.NewBufferSource(file))
	_, err := d.Load()
	require.ErrorIs(t, err, ErrInvalidContainer)
}

func TestLoadMalformedBox(t *testing.T) {
	bad := make([]byte, 8)
	pio.PutU32BE(bad, 3)
	copy(bad[4:], "free")

	d := NewDemuxer(av.NewBufferSource(bad))
	_, err := d.Load()
	require.Error(t, err)
	var pe *mp4io.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestLoadEmptySource(t *testing.T) {
	d := NewDemuxer(av.NewBufferSource(nil))
	_, err := d.Load()
	require.ErrorIs(t, err, ErrInvalidContainer)
}

func TestMetadataBeforeLoad(t *testing.T) {
	d := NewDemuxer(av.NewBufferSource(nil))
	require.Nil(t, d.Metadata())
}

func box(tag string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	pio.PutU32BE(b, uint32(len(b)))
	copy(b[4:], tag)
	copy(b[8:], payload)
	return b
}
