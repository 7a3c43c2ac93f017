// Package mp4
package mp4

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/teocci/go-mp4-demux/av"
	"github.com/teocci/go-mp4-demux/format/mp4/mp4io"
)

// videoConfigBytes serializes the decoder configuration record back to
// big-endian bytes and strips the 8-byte box header; decoders expect the
// bare record.
func videoConfigBytes(vd *mp4io.VisualDesc) ([]byte, error) {
	if vd == nil || vd.Conf == nil {
		return nil, ErrConfigNotFound
	}
	b := make([]byte, vd.Conf.Len())
	vd.Conf.Marshal(b)
	return b[8:], nil
}

func resolveVideo(trak *mp4io.Track) (*av.VideoTrack, error) {
	stbl := trak.SampleTable()
	vd := stbl.SampleDesc.Video
	conf, err := videoConfigBytes(vd)
	if err != nil {
		return nil, err
	}

	// Average rate over the actual decoded duration, so variable frame
	// rate sources report their true mean instead of the nominal rate.
	var frameRate float64
	if stbl.TimeToSample != nil && trak.Media.Header != nil {
		var samples, ticks uint64
		for _, entry := range stbl.TimeToSample.Entries {
			samples += uint64(entry.Count)
			ticks += uint64(entry.Count) * uint64(entry.Duration)
		}
		if ticks > 0 {
			seconds := float64(ticks) / float64(trak.Media.Header.TimeScale)
			frameRate = float64(samples) / seconds
		}
	}

	return &av.VideoTrack{
		Codec:     strings.TrimSpace(vd.Tag_.String()),
		Width:     int(vd.Width),
		Height:    int(vd.Height),
		Config:    conf,
		FrameRate: frameRate,
	}, nil
}

func resolveAudio(trak *mp4io.Track) *av.AudioTrack {
	stbl := trak.SampleTable()
	ad := stbl.SampleDesc.Audio

	// The track timescale stands in for the sample rate when the sample
	// entry does not carry one. Historical practice, not a verified
	// identity for every container variant.
	sampleRate := int(ad.SampleRate)
	if sampleRate == 0 && trak.Media.Header != nil {
		sampleRate = int(trak.Media.Header.TimeScale)
	}
	channels := int(ad.NumberOfChannels)
	if channels == 0 {
		channels = 2
	}

	return &av.AudioTrack{
		Codec:        strings.TrimSpace(mp4io.MP4A.String()),
		SampleRate:   sampleRate,
		ChannelCount: channels,
	}
}

func usableTrack(trak *mp4io.Track) *mp4io.SampleTable {
	stbl := trak.SampleTable()
	if stbl == nil || stbl.SampleDesc == nil ||
		stbl.TimeToSample == nil || stbl.SampleToChunk == nil ||
		stbl.ChunkOffset == nil || stbl.SampleSize == nil {
		return nil
	}
	return stbl
}

// resolveMetadata walks the moov and summarizes the first video and first
// audio track. Later tracks of an already-seen type are ignored.
func resolveMetadata(movie *mp4io.Movie, log *logrus.Entry) (meta *av.Metadata, video, audio *track, err error) {
	if movie.Header == nil || movie.Header.TimeScale == 0 {
		err = ErrInvalidContainer
		return
	}

	meta = &av.Metadata{
		Duration: float64(movie.Header.Duration) / float64(movie.Header.TimeScale),
	}

	var videoErr error
	for _, trak := range movie.Tracks {
		stbl := usableTrack(trak)
		if stbl == nil || trak.Media.Header == nil || trak.Header == nil {
			continue
		}
		switch {
		case stbl.SampleDesc.Video != nil:
			if meta.Video != nil {
				log.WithField("track", trak.Header.TrackID).Debug("extra video track ignored")
				continue
			}
			var vt *av.VideoTrack
			if vt, videoErr = resolveVideo(trak); videoErr != nil {
				continue
			}
			meta.Video = vt
			video = &track{
				trackID:   trak.Header.TrackID,
				timeScale: int64(trak.Media.Header.TimeScale),
				sample:    stbl,
			}
		case stbl.SampleDesc.Audio != nil:
			if meta.Audio != nil {
				log.WithField("track", trak.Header.TrackID).Debug("extra audio track ignored")
				continue
			}
			meta.Audio = resolveAudio(trak)
			audio = &track{
				trackID:   trak.Header.TrackID,
				timeScale: int64(trak.Media.Header.TimeScale),
				sample:    stbl,
			}
		}
	}

	if meta.Video == nil && meta.Audio == nil {
		if videoErr != nil {
			// A video track existed but its decoder configuration is
			// missing, and there is no audio to fall back on.
			err = videoErr
		} else {
			err = ErrInvalidContainer
		}
		meta = nil
		return
	}
	return
}
