// Package av
// Defines the basic data structures shared by the container demuxing layers:
// track summaries, encoded samples, and the byte source abstraction.
package av

import "fmt"

// TrackType selects one of the two track classes a container may carry.
type TrackType uint8

const (
	Video = TrackType(iota + 1)
	Audio
)

func (tt TrackType) String() string {
	switch tt {
	case Video:
		return "video"
	case Audio:
		return "audio"
	}
	return "?"
}

// SampleKind tells whether an encoded sample can start decoding on its own.
type SampleKind uint8

const (
	KeyFrame = SampleKind(iota + 1) // sync sample, decodable without predecessors
	DeltaFrame
)

func (sk SampleKind) String() string {
	switch sk {
	case KeyFrame:
		return "key"
	case DeltaFrame:
		return "delta"
	}
	return "?"
}

// Sample is one encoded audio/video access unit sliced out of the container.
// Time and Duration are in microseconds of presentation time. Ownership of
// Data passes to the caller; the demuxer keeps no reference to it.
type Sample struct {
	Kind     SampleKind
	Time     int64
	Duration int64
	Data     []byte
}

// VideoTrack summarizes the first video track of a container.
// Config holds the raw decoder configuration record (avcC/hvcC/vpcC/av1C
// payload without the box header), ready to hand to a decoder.
type VideoTrack struct {
	Codec     string // sample entry tag: avc1, hvc1, vp09, av01
	Width     int
	Height    int
	Config    []byte
	FrameRate float64 // samples per second of actual decoded duration
}

// AudioTrack summarizes the first audio track of a container.
type AudioTrack struct {
	Codec        string // sample entry tag, e.g. mp4a
	SampleRate   int
	ChannelCount int
}

// Metadata is the result of loading a container. At least one of Video and
// Audio is non-nil; Duration is in seconds and may be fractional.
type Metadata struct {
	Duration float64
	Video    *VideoTrack
	Audio    *AudioTrack
}

func (m Metadata) String() string {
	s := fmt.Sprintf("dur=%.3fs", m.Duration)
	if m.Video != nil {
		s += fmt.Sprintf(" video=%s %dx%d %.2ffps", m.Video.Codec, m.Video.Width, m.Video.Height, m.Video.FrameRate)
	}
	if m.Audio != nil {
		s += fmt.Sprintf(" audio=%s %dHz %dch", m.Audio.Codec, m.Audio.SampleRate, m.Audio.ChannelCount)
	}
	return s
}
