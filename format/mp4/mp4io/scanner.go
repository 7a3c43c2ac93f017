// Package mp4io
package mp4io

import (
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

// MaxMovieSize caps how large a moov box the scanner will buffer before
// declaring the container malformed.
const MaxMovieSize = 256 * 1024 * 1024

// ScanEvent is what Append hands back once it has made progress beyond
// consuming bytes. At most one of the fields is meaningful: Movie when the
// moov box materialized, NextOffset (>0) when the driver should re-slice the
// source and resume appending from that absolute offset, Done when nothing
// further is parseable (a size-0 box runs to end of file).
type ScanEvent struct {
	Movie      *Movie
	NextOffset int64
	Done       bool
}

// Scanner walks top-level boxes of an incrementally fed file. It buffers
// only the box it needs (moov) and asks the driver to jump over everything
// else, so a leading multi-gigabyte mdat costs one slice, not one read.
type Scanner struct {
	buf  []byte
	base int64 // absolute file offset of buf[0]
	pos  int64 // next absolute offset Append expects
	jump int64 // pending NextOffset handed to the driver, -1 if none
}

func NewScanner() *Scanner {
	return &Scanner{jump: -1}
}

// Append feeds the next chunk. offset is the chunk's absolute file offset;
// chunks arrive contiguously except right after a NextOffset event, where
// the next chunk must start exactly at the requested offset.
func (s *Scanner) Append(chunk []byte, offset int64) (ev ScanEvent, err error) {
	if s.jump >= 0 {
		if offset != s.jump {
			err = parseErr("AppendAfterSkip", int(offset), nil)
			return
		}
		s.buf = s.buf[:0]
		s.base = offset
		s.pos = offset
		s.jump = -1
	} else if offset != s.pos {
		err = parseErr("AppendGap", int(offset), nil)
		return
	}
	s.buf = append(s.buf, chunk...)
	s.pos += int64(len(chunk))

	for {
		if len(s.buf) < 8 {
			return
		}
		size := int64(pio.U32BE(s.buf))
		tag := Tag(pio.U32BE(s.buf[4:]))

		if size == 0 {
			if tag == MOOV {
				// The moov runs to end of file; its extent is only known
				// once the source is exhausted, so keep buffering until
				// Finish.
				if int64(len(s.buf)) > MaxMovieSize {
					err = parseErr("MovieTooLarge", int(s.base), nil)
				}
				return
			}
			// Last box of the file, extent unknown until EOF; nothing
			// behind it can hold metadata.
			ev.Done = true
			return
		}
		hdrLen := int64(8)
		if size == 1 {
			if len(s.buf) < 16 {
				return
			}
			size = int64(pio.U64BE(s.buf[8:]))
			if size < 16 {
				err = parseErr("LargeSizeInvalid", int(s.base), nil)
				return
			}
			hdrLen = 16
		} else if size < 8 {
			err = parseErr("BoxSizeInvalid", int(s.base), nil)
			return
		}
		boxEnd := s.base + size

		if tag == MOOV {
			if size > MaxMovieSize {
				err = parseErr("MovieTooLarge", int(s.base), nil)
				return
			}
			if int64(len(s.buf)) < size {
				return // keep buffering
			}
			raw := s.buf[:size]
			if hdrLen == 16 {
				// The unmarshaler expects the compact 8-byte header;
				// rewrite the largesize one.
				nb := make([]byte, size-8)
				pio.PutU32BE(nb, uint32(size-8))
				pio.PutU32BE(nb[4:], uint32(MOOV))
				copy(nb[8:], raw[16:])
				raw = nb
			}
			movie := &Movie{}
			if _, err = movie.Unmarshal(raw, int(s.base)); err != nil {
				err = parseErr("moov", int(s.base), err)
				return
			}
			ev.Movie = movie
			return
		}

		// Anything else is skipped. If its bytes are already in hand we
		// advance in place, otherwise the driver jumps the source.
		if boxEnd <= s.pos {
			s.buf = s.buf[size:]
			s.base += size
			continue
		}
		s.jump = boxEnd
		ev.NextOffset = boxEnd
		return
	}
}

// Finish tells the scanner the source is exhausted. A buffered moov in the
// size-0 (extends to end of file) form is parseable only now; any other
// leftover state yields an empty event.
func (s *Scanner) Finish() (ev ScanEvent, err error) {
	if s.jump >= 0 || len(s.buf) < 8 {
		return
	}
	if pio.U32BE(s.buf) != 0 || Tag(pio.U32BE(s.buf[4:])) != MOOV {
		return
	}
	movie := &Movie{}
	if _, err = movie.Unmarshal(s.buf, int(s.base)); err != nil {
		err = parseErr("moov", int(s.base), err)
		return
	}
	ev.Movie = movie
	return
}
