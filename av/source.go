// Package av
package av

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is a sequential byte source over random-access media bytes. Read
// drains it forward; SliceFrom opens a fresh source positioned at an absolute
// file offset, which is how the demuxer seeks without draining the gap.
type Source interface {
	io.Reader
	SliceFrom(offset int64) (Source, error)
	Size() int64
}

// FileSource reads a regular file. The file handle is borrowed, not owned;
// Close stays with the caller.
type FileSource struct {
	f    *os.File
	r    *io.SectionReader
	size int64
}

func NewFileSource(f *os.File) (src *FileSource, err error) {
	var info os.FileInfo
	if info, err = f.Stat(); err != nil {
		return
	}
	size := info.Size()
	src = &FileSource{
		f:    f,
		r:    io.NewSectionReader(f, 0, size),
		size: size,
	}
	return
}

func (fs *FileSource) Read(p []byte) (int, error) {
	return fs.r.Read(p)
}

func (fs *FileSource) SliceFrom(offset int64) (Source, error) {
	if offset < 0 || offset > fs.size {
		return nil, fmt.Errorf("av: slice offset=%d outside file size=%d", offset, fs.size)
	}
	return &FileSource{
		f:    fs.f,
		r:    io.NewSectionReader(fs.f, offset, fs.size-offset),
		size: fs.size,
	}, nil
}

func (fs *FileSource) Size() int64 {
	return fs.size
}

// BufferSource serves a byte slice already in memory.
type BufferSource struct {
	b *bytes.Reader
	d []byte
}

func NewBufferSource(data []byte) *BufferSource {
	return &BufferSource{
		b: bytes.NewReader(data),
		d: data,
	}
}

func (bs *BufferSource) Read(p []byte) (int, error) {
	return bs.b.Read(p)
}

func (bs *BufferSource) SliceFrom(offset int64) (Source, error) {
	if offset < 0 || offset > int64(len(bs.d)) {
		return nil, fmt.Errorf("av: slice offset=%d outside buffer size=%d", offset, len(bs.d))
	}
	src := NewBufferSource(bs.d)
	if _, err := src.b.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return src, nil
}

func (bs *BufferSource) Size() int64 {
	return int64(len(bs.d))
}
