// Package mp4
package mp4

import (
	"bufio"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/teocci/go-mp4-demux/av"
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

const (
	// ExtractBatchSize caps how many samples are read and converted per
	// batch, bounding retained memory to one batch worth of payload.
	ExtractBatchSize = 100

	// FrameRateThreshold is the slack, in seconds, near the window end:
	// once a batch leaves the last accepted timestamp this close to the
	// end, no further batch is fetched.
	FrameRateThreshold = 0.5

	// SeekGapThreshold is the largest inter-sample gap worth discarding
	// through the buffered reader; anything wider re-slices the source.
	SeekGapThreshold = 256 * 1024

	// endClampMargin keeps the window end strictly inside the movie so a
	// final truncated frame is never requested.
	endClampMargin = 0.1
)

// Extract returns the encoded samples of one track whose presentation
// timestamps fall in [start, end) seconds. end <= 0 means to the end of the
// movie. The seek snaps back to a sync sample so the first returned video
// sample is decodable. Requires a successful Load; a missing track yields an
// empty result.
func (d *Demuxer) Extract(tt av.TrackType, start, end float64) ([]av.Sample, error) {
	if d.meta == nil {
		return nil, ErrNotLoaded
	}
	trk := d.trackFor(tt)
	if trk == nil {
		return []av.Sample{}, nil
	}
	if !d.beginExtract() {
		return nil, ErrExtractionBusy
	}
	defer d.endExtract()

	normEnd := d.meta.Duration - endClampMargin
	if end > 0 && end < normEnd {
		normEnd = end
	}

	log := d.log.WithFields(logrus.Fields{
		"track": tt,
		"start": start,
		"end":   normEnd,
	})
	log.Debug("extraction started")

	c := newCursor(trk)
	// A track with empty sample tables behaves like an absent one.
	if c.count() == 0 {
		return []av.Sample{}, nil
	}
	startTicks := int64(start * float64(trk.timeScale))
	if err := c.setSampleIndex(c.timeToSampleIndex(startTicks)); err != nil {
		return nil, err
	}

	sr, err := newSampleReader(d.src, c.offset())
	if err != nil {
		return nil, err
	}

	var out []av.Sample
	ticks := float64(trk.timeScale)
	// Timestamps are only loosely aligned with the requested boundary, so
	// once a batch ends this close to the window end the next batch can
	// hold nothing the caller needs.
	stopAt := int64(math.Round((normEnd - FrameRateThreshold) * 1e6))
	done := false
	for !done {
		var batch []sampleEntry
		total := 0
		for len(batch) < ExtractBatchSize {
			if !c.valid() {
				done = true
				break
			}
			t := float64(c.cts()) / ticks
			if t >= normEnd {
				done = true
				break
			}
			if t >= start {
				batch = append(batch, sampleEntry{
					offset: c.offset(),
					size:   c.size(),
					time:   tickToMicro(c.cts(), trk.timeScale),
					dur:    tickToMicro(c.durationTicks(), trk.timeScale),
					sync:   c.isSync(),
				})
				total += c.size()
			}
			c.next()
		}

		if len(batch) == 0 {
			break
		}
		buf := make([]byte, total)
		pos := 0
		for _, e := range batch {
			data := buf[pos : pos+e.size]
			pos += e.size
			if err = sr.readAt(e.offset, data); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					log.WithField("samples", len(out)).Debug("source exhausted before window end")
					return out, nil
				}
				return nil, err
			}
			kind := av.DeltaFrame
			if e.sync {
				kind = av.KeyFrame
			}
			out = append(out, av.Sample{
				Kind:     kind,
				Time:     e.time,
				Duration: e.dur,
				Data:     data,
			})
		}
		log.WithFields(logrus.Fields{
			"batch": len(batch),
			"total": len(out),
		}).Debug("batch extracted")

		if out[len(out)-1].Time >= stopAt {
			done = true
		}
	}

	log.WithField("samples", len(out)).Debug("extraction complete")
	return out, nil
}

type sampleEntry struct {
	offset int64
	size   int
	time   int64
	dur    int64
	sync   bool
}

func tickToMicro(v, timeScale int64) int64 {
	return int64(math.Round(float64(v) * 1e6 / float64(timeScale)))
}

// sampleReader reads sample payloads in ascending file order, skipping the
// interleaved chunks of other tracks by discarding small gaps and re-slicing
// the source across large ones.
type sampleReader struct {
	src av.Source
	r   *bufio.Reader
	pos int64
}

func newSampleReader(src av.Source, offset int64) (*sampleReader, error) {
	s, err := src.SliceFrom(offset)
	if err != nil {
		return nil, err
	}
	return &sampleReader{
		src: src,
		r:   bufio.NewReaderSize(s, pio.RecommendBufioSize),
		pos: offset,
	}, nil
}

func (sr *sampleReader) readAt(offset int64, p []byte) (err error) {
	gap := offset - sr.pos
	switch {
	case gap < 0 || gap > SeekGapThreshold:
		var s av.Source
		if s, err = sr.src.SliceFrom(offset); err != nil {
			return
		}
		sr.r.Reset(s)
		sr.pos = offset
	case gap > 0:
		if _, err = sr.r.Discard(int(gap)); err != nil {
			return
		}
		sr.pos = offset
	}
	if _, err = io.ReadFull(sr.r, p); err != nil {
		return
	}
	sr.pos = offset + int64(len(p))
	return
}
