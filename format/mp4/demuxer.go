// Package mp4
// Progressive ISO-BMFF demuxer: loads container metadata without reading
// the whole file, then extracts encoded samples for a requested time window
// with bounded memory.
package mp4

import (
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/teocci/go-mp4-demux/av"
	"github.com/teocci/go-mp4-demux/format/mp4/mp4io"
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

// LoadChunkSize is how many bytes Load pulls from the source per read.
var LoadChunkSize = pio.RecommendBufioSize

type track struct {
	trackID   uint32
	timeScale int64
	sample    *mp4io.SampleTable
}

// Demuxer is a handle over one media source. Load must complete before
// Extract; only one Extract may run at a time per handle.
type Demuxer struct {
	src av.Source
	log *logrus.Entry

	movie *mp4io.Movie
	meta  *av.Metadata

	video *track
	audio *track

	extracting int32
}

func NewDemuxer(src av.Source) *Demuxer {
	return &Demuxer{
		src: src,
		log: logrus.WithField("handle", uuid.NewString()[:8]),
	}
}

// Load drives the scanner with sequential chunks until moov materializes,
// jumping over boxes that cannot hold metadata. It stops reading the moment
// metadata is available; a second call returns the cached result.
func (d *Demuxer) Load() (meta *av.Metadata, err error) {
	if d.meta != nil {
		return d.meta, nil
	}

	scanner := mp4io.NewScanner()
	src := d.src
	size := d.src.Size()
	var offset int64
	buf := make([]byte, LoadChunkSize)

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			var ev mp4io.ScanEvent
			if ev, err = scanner.Append(buf[:nr], offset); err != nil {
				return nil, err
			}
			offset += int64(nr)

			switch {
			case ev.Movie != nil:
				d.log.WithField("offset", offset).Debug("moov parsed, load complete")
				return d.resolve(ev.Movie)
			case ev.NextOffset > 0:
				if ev.NextOffset >= size {
					return nil, ErrInvalidContainer
				}
				d.log.WithField("skipTo", ev.NextOffset).Debug("skipping box")
				if src, err = d.src.SliceFrom(ev.NextOffset); err != nil {
					return nil, err
				}
				offset = ev.NextOffset
			case ev.Done:
				return nil, ErrInvalidContainer
			}
		}
		if rerr == io.EOF {
			// A moov in the size-0 form only becomes parseable here,
			// once its extent is known.
			var ev mp4io.ScanEvent
			if ev, err = scanner.Finish(); err != nil {
				return nil, err
			}
			if ev.Movie != nil {
				return d.resolve(ev.Movie)
			}
			return nil, ErrInvalidContainer
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}

func (d *Demuxer) resolve(movie *mp4io.Movie) (*av.Metadata, error) {
	meta, video, audio, err := resolveMetadata(movie, d.log)
	if err != nil {
		return nil, err
	}
	d.movie = movie
	d.meta = meta
	d.video = video
	d.audio = audio
	d.log.Debugf("metadata: %v", meta)
	return meta, nil
}

// Metadata returns the cached result of a successful Load, or nil.
func (d *Demuxer) Metadata() *av.Metadata {
	return d.meta
}

func (d *Demuxer) trackFor(tt av.TrackType) *track {
	switch tt {
	case av.Video:
		return d.video
	case av.Audio:
		return d.audio
	}
	return nil
}

func (d *Demuxer) beginExtract() bool {
	return atomic.CompareAndSwapInt32(&d.extracting, 0, 1)
}

func (d *Demuxer) endExtract() {
	atomic.StoreInt32(&d.extracting, 0)
}
