package mp4io

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func marshalAtom(t *testing.T, a Atom) []byte {
	t.Helper()
	b := make([]byte, a.Len())
	n := a.Marshal(b)
	require.Equal(t, len(b), n, "Marshal length disagrees with Len")
	return b
}

func testMovie() *Movie {
	return &Movie{
		Header: &MovieHeader{
			TimeScale:   1000,
			Duration:    10000,
			NextTrackID: 3,
		},
		Tracks: []*Track{
			{
				Header: &TrackHeader{
					TrackID:     1,
					Duration:    10000,
					TrackWidth:  640,
					TrackHeight: 360,
				},
				Media: &Media{
					Header: &MediaHeader{
						TimeScale: 90000,
						Duration:  900000,
					},
					Handler: &HandlerRefer{
						Type:    [4]byte{'m', 'h', 'l', 'r'},
						SubType: [4]byte{'v', 'i', 'd', 'e'},
						Name:    []byte("VideoHandler"),
					},
					Info: &MediaInfo{
						Video: &VideoMediaInfo{},
						Data: &DataInfo{
							Refer: &DataRefer{Url: &DataReferUrl{Flags: 1}},
						},
						Sample: &SampleTable{
							SampleDesc: &SampleDesc{
								Video: &VisualDesc{
									Tag_:       AVC1,
									DataRefIdx: 1,
									Width:      640,
									Height:     360,
									Conf: &VideoConf{
										Tag_: AVCC,
										Data: []byte{0x01, 0x64, 0x00, 0x1f, 0xff},
									},
								},
							},
							TimeToSample: &TimeToSample{
								Entries: []TimeToSampleEntry{{Count: 300, Duration: 3000}},
							},
							CompositionOffset: &CompositionOffset{
								Entries: []CompositionOffsetEntry{{Count: 300, Offset: 0}},
							},
							SampleToChunk: &SampleToChunk{
								Entries: []SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 30, SampleDescId: 1}},
							},
							SyncSample: &SyncSample{
								Entries: []uint32{1, 31, 61},
							},
							ChunkOffset: &ChunkOffset{
								Tag_:    STCO,
								Entries: []uint64{24, 1024, 2048},
							},
							SampleSize: &SampleSize{
								Entries: []uint32{100, 200, 300},
							},
						},
					},
				},
			},
		},
	}
}

func TestMovieRoundTrip(t *testing.T) {
	b := marshalAtom(t, testMovie())

	parsed := &Movie{}
	_, err := parsed.Unmarshal(b, 0)
	require.NoError(t, err)

	require.NotNil(t, parsed.Header)
	require.Equal(t, uint32(1000), parsed.Header.TimeScale)
	require.Equal(t, uint64(10000), parsed.Header.Duration)
	require.Len(t, parsed.Tracks, 1)

	trk := parsed.Tracks[0]
	require.Equal(t, uint32(1), trk.Header.TrackID)
	require.Equal(t, float64(640), trk.Header.TrackWidth)
	require.Equal(t, float64(360), trk.Header.TrackHeight)
	require.Equal(t, uint32(90000), trk.Media.Header.TimeScale)
	require.Equal(t, [4]byte{'v', 'i', 'd', 'e'}, trk.Media.Handler.SubType)

	stbl := trk.SampleTable()
	require.NotNil(t, stbl)
	require.Equal(t, []TimeToSampleEntry{{Count: 300, Duration: 3000}}, stbl.TimeToSample.Entries)
	require.Equal(t, []uint32{1, 31, 61}, stbl.SyncSample.Entries)
	require.Equal(t, []uint64{24, 1024, 2048}, stbl.ChunkOffset.Entries)
	require.Equal(t, STCO, stbl.ChunkOffset.Tag())
	require.Equal(t, []uint32{100, 200, 300}, stbl.SampleSize.Entries)

	vd := stbl.SampleDesc.Video
	require.NotNil(t, vd)
	require.Equal(t, AVC1, vd.Tag())
	require.Equal(t, int16(640), vd.Width)
	require.NotNil(t, vd.Conf)
	require.Equal(t, AVCC, vd.Conf.Tag())
	require.Equal(t, []byte{0x01, 0x64, 0x00, 0x1f, 0xff}, vd.Conf.Data)
}

func TestVisualDescVariants(t *testing.T) {
	cases := []struct {
		entry Tag
		conf  Tag
	}{
		{AVC1, AVCC},
		{HVC1, HVCC},
		{HEV1, HVCC},
		{VP09, VPCC},
		{AV01, AV1C},
	}
	for _, c := range cases {
		t.Run(c.entry.String(), func(t *testing.T) {
			vd := &VisualDesc{
				Tag_:   c.entry,
				Width:  1920,
				Height: 1080,
				Conf:   &VideoConf{Tag_: c.conf, Data: []byte{1, 2, 3, 4}},
			}
			sd := &SampleDesc{Video: vd}
			b := marshalAtom(t, sd)

			parsed := &SampleDesc{}
			_, err := parsed.Unmarshal(b, 0)
			require.NoError(t, err)
			require.NotNil(t, parsed.Video)
			require.Equal(t, c.entry, parsed.Video.Tag())
			require.Equal(t, int16(1920), parsed.Video.Width)
			require.NotNil(t, parsed.Video.Conf)
			require.Equal(t, c.conf, parsed.Video.Conf.Tag())
			require.Equal(t, []byte{1, 2, 3, 4}, parsed.Video.Conf.Data)
		})
	}
}

func TestChunkOffset64RoundTrip(t *testing.T) {
	co := &ChunkOffset{
		Tag_:    CO64,
		Entries: []uint64{1 << 33, 1<<33 + 4096},
	}
	b := marshalAtom(t, co)
	require.Equal(t, "co64", string(b[4:8]))

	parsed := &ChunkOffset{}
	_, err := parsed.Unmarshal(b, 0)
	require.NoError(t, err)
	require.Equal(t, CO64, parsed.Tag())
	require.Equal(t, co.Entries, parsed.Entries)
}

func TestMP4ADescRoundTrip(t *testing.T) {
	ad := &MP4ADesc{
		DataRefIdx:       1,
		NumberOfChannels: 2,
		SampleSize:       16,
		SampleRate:       44100,
		Conf: &ElemStreamDesc{
			DecConfig: []byte{0x12, 0x10},
		},
	}
	b := marshalAtom(t, ad)

	parsed := &MP4ADesc{}
	_, err := parsed.Unmarshal(b, 0)
	require.NoError(t, err)
	require.Equal(t, int16(2), parsed.NumberOfChannels)
	require.Equal(t, float64(44100), parsed.SampleRate)
	require.NotNil(t, parsed.Conf)
	require.Equal(t, []byte{0x12, 0x10}, parsed.Conf.DecConfig)
}

func TestSampleCountFixedSize(t *testing.T) {
	sz := SampleSize{SampleSize: 4}
	sc := &SampleToChunk{Entries: []SampleToChunkEntry{
		{FirstChunk: 1, SamplesPerChunk: 100, SampleDescId: 1},
		{FirstChunk: 3, SamplesPerChunk: 50, SampleDescId: 1},
	}}
	co := &ChunkOffset{Entries: []uint64{0, 1, 2, 3}}
	require.Equal(t, 300, sz.SampleCount(sc, co))

	variable := SampleSize{Entries: []uint32{9, 9, 9}}
	require.Equal(t, 3, variable.SampleCount(sc, co))
}

func TestFindChildren(t *testing.T) {
	movie := testMovie()
	found := FindChildrenByName(movie, "stts")
	require.NotNil(t, found)
	require.Equal(t, STTS, found.Tag())
	require.Nil(t, FindChildrenByName(movie, "smhd"))
}

func TestTagString(t *testing.T) {
	require.Equal(t, "moov", MOOV.String())
	require.Equal(t, MOOV, StringToTag("moov"))
	require.Equal(t, "url ", URL.String())
}

func TestTruncatedMovieFails(t *testing.T) {
	b := marshalAtom(t, testMovie())
	parsed := &Movie{}
	_, err := parsed.Unmarshal(b[:len(b)-20], 0)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}
