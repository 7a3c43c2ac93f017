package mp4

import (
	"testing"

	"github.com/teocci/go-mp4-demux/format/mp4/mp4io"
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

// The test movie is ten seconds long: a 30 fps avc1 track (300 samples, 30
// per chunk, a keyframe opening each chunk) interleaved with a 100 Hz mp4a
// track (1000 fixed-size samples, 100 per chunk).
const (
	fixtureVideoTimeScale = 90000
	fixtureVideoSampleDur = 3000
	fixtureVideoSamples   = 300
	fixtureVideoPerChunk  = 30

	fixtureAudioTimeScale = 48000
	fixtureAudioSampleDur = 480
	fixtureAudioSamples   = 1000
	fixtureAudioPerChunk  = 100

	fixtureChunkRounds = 10
)

var fixtureAVCC = []byte{0x01, 0x64, 0x00, 0x1f, 0xff, 0xe1, 0x00, 0x05}

func videoSampleSize(i int) int {
	return 16 + i%7
}

func videoPayload(i int) []byte {
	b := make([]byte, videoSampleSize(i))
	for j := range b {
		b[j] = byte(i*31 + j)
	}
	return b
}

func audioPayload(i int) []byte {
	b := make([]byte, 4)
	pio.PutU32BE(b, uint32(i))
	return b
}

type fixtureOpts struct {
	moovFirst bool
	videoOnly bool
}

func buildFixtureMoov(videoChunks, audioChunks []uint64) *mp4io.Movie {
	videoSizes := make([]uint32, fixtureVideoSamples)
	for i := range videoSizes {
		videoSizes[i] = uint32(videoSampleSize(i))
	}
	syncs := make([]uint32, 0, fixtureChunkRounds)
	for c := 0; c < fixtureChunkRounds; c++ {
		syncs = append(syncs, uint32(c*fixtureVideoPerChunk+1))
	}

	videoTrak := &mp4io.Track{
		Header: &mp4io.TrackHeader{
			TrackID:     1,
			Duration:    10000,
			TrackWidth:  640,
			TrackHeight: 360,
		},
		Media: &mp4io.Media{
			Header: &mp4io.MediaHeader{
				TimeScale: fixtureVideoTimeScale,
				Duration:  fixtureVideoSamples * fixtureVideoSampleDur,
			},
			Handler: &mp4io.HandlerRefer{
				SubType: [4]byte{'v', 'i', 'd', 'e'},
				Name:    []byte("VideoHandler"),
			},
			Info: &mp4io.MediaInfo{
				Video: &mp4io.VideoMediaInfo{},
				Data: &mp4io.DataInfo{
					Refer: &mp4io.DataRefer{Url: &mp4io.DataReferUrl{Flags: 1}},
				},
				Sample: &mp4io.SampleTable{
					SampleDesc: &mp4io.SampleDesc{
						Video: &mp4io.VisualDesc{
							Tag_:       mp4io.AVC1,
							DataRefIdx: 1,
							Width:      640,
							Height:     360,
							Conf:       &mp4io.VideoConf{Tag_: mp4io.AVCC, Data: fixtureAVCC},
						},
					},
					TimeToSample: &mp4io.TimeToSample{
						Entries: []mp4io.TimeToSampleEntry{
							{Count: fixtureVideoSamples, Duration: fixtureVideoSampleDur},
						},
					},
					CompositionOffset: &mp4io.CompositionOffset{
						Entries: []mp4io.CompositionOffsetEntry{
							{Count: fixtureVideoSamples, Offset: 0},
						},
					},
					SampleToChunk: &mp4io.SampleToChunk{
						Entries: []mp4io.SampleToChunkEntry{
							{FirstChunk: 1, SamplesPerChunk: fixtureVideoPerChunk, SampleDescId: 1},
						},
					},
					SyncSample: &mp4io.SyncSample{Entries: syncs},
					ChunkOffset: &mp4io.ChunkOffset{
						Tag_:    mp4io.STCO,
						Entries: videoChunks,
					},
					SampleSize: &mp4io.SampleSize{Entries: videoSizes},
				},
			},
		},
	}

	movie := &mp4io.Movie{
		Header: &mp4io.MovieHeader{
			TimeScale:   1000,
			Duration:    10000,
			NextTrackID: 3,
		},
		Tracks: []*mp4io.Track{videoTrak},
	}

	if audioChunks == nil {
		return movie
	}

	audioTrak := &mp4io.Track{
		Header: &mp4io.TrackHeader{
			TrackID:  2,
			Duration: 10000,
		},
		Media: &mp4io.Media{
			Header: &mp4io.MediaHeader{
				TimeScale: fixtureAudioTimeScale,
				Duration:  fixtureAudioSamples * fixtureAudioSampleDur,
			},
			Handler: &mp4io.HandlerRefer{
				SubType: [4]byte{'s', 'o', 'u', 'n'},
				Name:    []byte("SoundHandler"),
			},
			Info: &mp4io.MediaInfo{
				Sound: &mp4io.SoundMediaInfo{},
				Data: &mp4io.DataInfo{
					Refer: &mp4io.DataRefer{Url: &mp4io.DataReferUrl{Flags: 1}},
				},
				Sample: &mp4io.SampleTable{
					SampleDesc: &mp4io.SampleDesc{
						Audio: &mp4io.MP4ADesc{
							DataRefIdx:       1,
							NumberOfChannels: 2,
							SampleSize:       16,
							SampleRate:       fixtureAudioTimeScale,
							Conf:             &mp4io.ElemStreamDesc{DecConfig: []byte{0x11, 0x90}},
						},
					},
					TimeToSample: &mp4io.TimeToSample{
						Entries: []mp4io.TimeToSampleEntry{
							{Count: fixtureAudioSamples, Duration: fixtureAudioSampleDur},
						},
					},
					SampleToChunk: &mp4io.SampleToChunk{
						Entries: []mp4io.SampleToChunkEntry{
							{FirstChunk: 1, SamplesPerChunk: fixtureAudioPerChunk, SampleDescId: 1},
						},
					},
					ChunkOffset: &mp4io.ChunkOffset{
						Tag_:    mp4io.STCO,
						Entries: audioChunks,
					},
					SampleSize: &mp4io.SampleSize{SampleSize: 4},
				},
			},
		},
	}
	movie.Tracks = append(movie.Tracks, audioTrak)
	return movie
}

func fixtureFtyp() []byte {
	b := make([]byte, 16)
	pio.PutU32BE(b, 16)
	copy(b[4:], "ftyp")
	copy(b[8:], "isom")
	pio.PutU32BE(b[12:], 0x200)
	return b
}

// buildFixtureMP4 assembles a complete playable-layout file in memory:
// either ftyp+mdat+moov (the progressive-download worst case) or
// ftyp+moov+mdat.
func buildFixtureMP4(t *testing.T, opts fixtureOpts) []byte {
	t.Helper()

	var payload []byte
	var videoChunks, audioChunks []uint64
	vi, ai := 0, 0
	for round := 0; round < fixtureChunkRounds; round++ {
		videoChunks = append(videoChunks, uint64(len(payload)))
		for k := 0; k < fixtureVideoPerChunk; k++ {
			payload = append(payload, videoPayload(vi)...)
			vi++
		}
		if !opts.videoOnly {
			audioChunks = append(audioChunks, uint64(len(payload)))
			for k := 0; k < fixtureAudioPerChunk; k++ {
				payload = append(payload, audioPayload(ai)...)
				ai++
			}
		}
	}
	if opts.videoOnly {
		audioChunks = nil
	}

	ftyp := fixtureFtyp()
	// Chunk offsets depend only on the moov length, which does not change
	// when the offsets are rewritten.
	moovLen := buildFixtureMoov(videoChunks, audioChunks).Len()

	payloadBase := uint64(len(ftyp)) + 8
	if opts.moovFirst {
		payloadBase += uint64(moovLen)
	}
	for i := range videoChunks {
		videoChunks[i] += payloadBase
	}
	for i := range audioChunks {
		audioChunks[i] += payloadBase
	}

	movie := buildFixtureMoov(videoChunks, audioChunks)
	moov := make([]byte, movie.Len())
	movie.Marshal(moov)

	mdat := make([]byte, 8+len(payload))
	pio.PutU32BE(mdat, uint32(len(mdat)))
	copy(mdat[4:], "mdat")
	copy(mdat[8:], payload)

	var file []byte
	file = append(file, ftyp...)
	if opts.moovFirst {
		file = append(file, moov...)
		file = append(file, mdat...)
	} else {
		file = append(file, mdat...)
		file = append(file, moov...)
	}
	return file
}
