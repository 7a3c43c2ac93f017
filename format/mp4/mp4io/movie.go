// Package mp4io
package mp4io

import (
	"time"

	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

type Movie struct {
	Header   *MovieHeader
	Tracks   []*Track
	Unknowns []Atom
	AtomPos
}

func (m Movie) Tag() Tag {
	return MOOV
}

func (m Movie) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(MOOV))
	n += m.marshal(b[8:]) + 8
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (m Movie) marshal(b []byte) (n int) {
	if m.Header != nil {
		n += m.Header.Marshal(b[n:])
	}
	for _, atom := range m.Tracks {
		n += atom.Marshal(b[n:])
	}
	for _, atom := range m.Unknowns {
		n += atom.Marshal(b[n:])
	}
	return
}

func (m Movie) Len() (n int) {
	n += 8
	if m.Header != nil {
		n += m.Header.Len()
	}
	for _, atom := range m.Tracks {
		n += atom.Len()
	}
	for _, atom := range m.Unknowns {
		n += atom.Len()
	}
	return
}

func (m *Movie) Unmarshal(b []byte, offset int) (n int, err error) {
	(&m.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case MVHD:
			atom := &MovieHeader{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mvhd", n+offset, err)
				return
			}
			m.Header = atom
		case TRAK:
			atom := &Track{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("trak", n+offset, err)
				return
			}
			m.Tracks = append(m.Tracks, atom)
		default:
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			m.Unknowns = append(m.Unknowns, atom)
		}
		n += size
	}
	return
}

func (m Movie) Children() (r []Atom) {
	if m.Header != nil {
		r = append(r, m.Header)
	}
	for _, atom := range m.Tracks {
		r = append(r, atom)
	}
	r = append(r, m.Unknowns...)
	return
}

type MovieHeader struct {
	Version         uint8
	Flags           uint32
	CreateTime      time.Time
	ModifyTime      time.Time
	TimeScale       uint32
	Duration        uint64
	PreferredRate   float64
	PreferredVolume float64
	Matrix          [9]int32
	NextTrackID     uint32
	AtomPos
}

func (mh MovieHeader) Tag() Tag {
	return MVHD
}

func (mh MovieHeader) Len() int {
	return 8 + 100
}

func (mh MovieHeader) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(MVHD))
	n = 8
	pio.PutU8(b[n:], 0)
	pio.PutU24BE(b[n+1:], mh.Flags)
	n += 4
	PutTime32(b[n:], mh.CreateTime)
	n += 4
	PutTime32(b[n:], mh.ModifyTime)
	n += 4
	pio.PutU32BE(b[n:], mh.TimeScale)
	n += 4
	pio.PutU32BE(b[n:], uint32(mh.Duration))
	n += 4
	PutFixed32(b[n:], mh.PreferredRate)
	n += 4
	PutFixed16(b[n:], mh.PreferredVolume)
	n += 2
	n += 10
	for _, v := range mh.Matrix {
		pio.PutI32BE(b[n:], v)
		n += 4
	}
	n += 24
	pio.PutU32BE(b[n:], mh.NextTrackID)
	n += 4
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (mh *MovieHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	(&mh.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+4 {
		err = parseErr("Version", n+offset, err)
		return
	}
	mh.Version = pio.U8(b[n:])
	mh.Flags = pio.U24BE(b[n+1:])
	n += 4
	if mh.Version == 1 {
		if len(b) < n+108 {
			err = parseErr("BodyV1", n+offset, err)
			return
		}
		mh.CreateTime = GetTime64(b[n:])
		mh.ModifyTime = GetTime64(b[n+8:])
		mh.TimeScale = pio.U32BE(b[n+16:])
		mh.Duration = pio.U64BE(b[n+20:])
		n += 28
	} else {
		if len(b) < n+96 {
			err = parseErr("BodyV0", n+offset, err)
			return
		}
		mh.CreateTime = GetTime32(b[n:])
		mh.ModifyTime = GetTime32(b[n+4:])
		mh.TimeScale = pio.U32BE(b[n+8:])
		mh.Duration = uint64(pio.U32BE(b[n+12:]))
		n += 16
	}
	mh.PreferredRate = GetFixed32(b[n:])
	n += 4
	mh.PreferredVolume = GetFixed16(b[n:])
	n += 2
	n += 10
	for i := range mh.Matrix {
		mh.Matrix[i] = pio.I32BE(b[n:])
		n += 4
	}
	n += 24
	mh.NextTrackID = pio.U32BE(b[n:])
	n += 4
	return
}

func (mh MovieHeader) Children() []Atom {
	return nil
}

type Track struct {
	Header   *TrackHeader
	Media    *Media
	Unknowns []Atom
	AtomPos
}

func (t Track) Tag() Tag {
	return TRAK
}

func (t Track) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(TRAK))
	n += t.marshal(b[8:]) + 8
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (t Track) marshal(b []byte) (n int) {
	if t.Header != nil {
		n += t.Header.Marshal(b[n:])
	}
	if t.Media != nil {
		n += t.Media.Marshal(b[n:])
	}
	for _, atom := range t.Unknowns {
		n += atom.Marshal(b[n:])
	}
	return
}

func (t Track) Len() (n int) {
	n += 8
	if t.Header != nil {
		n += t.Header.Len()
	}
	if t.Media != nil {
		n += t.Media.Len()
	}
	for _, atom := range t.Unknowns {
		n += atom.Len()
	}
	return
}

func (t *Track) Unmarshal(b []byte, offset int) (n int, err error) {
	(&t.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case TKHD:
			atom := &TrackHeader{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("tkhd", n+offset, err)
				return
			}
			t.Header = atom
		case MDIA:
			atom := &Media{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mdia", n+offset, err)
				return
			}
			t.Media = atom
		default:
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			t.Unknowns = append(t.Unknowns, atom)
		}
		n += size
	}
	return
}

func (t Track) Children() (r []Atom) {
	if t.Header != nil {
		r = append(r, t.Header)
	}
	if t.Media != nil {
		r = append(r, t.Media)
	}
	r = append(r, t.Unknowns...)
	return
}

// SampleTable returns the track's stbl, or nil when the moov is malformed.
func (t *Track) SampleTable() *SampleTable {
	if t.Media == nil || t.Media.Info == nil {
		return nil
	}
	return t.Media.Info.Sample
}

type TrackHeader struct {
	Version        uint8
	Flags          uint32
	CreateTime     time.Time
	ModifyTime     time.Time
	TrackID        uint32
	Duration       uint64
	Layer          int16
	AlternateGroup int16
	Volume         float64
	Matrix         [9]int32
	TrackWidth     float64
	TrackHeight    float64
	AtomPos
}

func (th TrackHeader) Tag() Tag {
	return TKHD
}

func (th TrackHeader) Len() int {
	return 8 + 84
}

func (th TrackHeader) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(TKHD))
	n = 8
	pio.PutU8(b[n:], 0)
	pio.PutU24BE(b[n+1:], th.Flags)
	n += 4
	PutTime32(b[n:], th.CreateTime)
	n += 4
	PutTime32(b[n:], th.ModifyTime)
	n += 4
	pio.PutU32BE(b[n:], th.TrackID)
	n += 4
	n += 4
	pio.PutU32BE(b[n:], uint32(th.Duration))
	n += 4
	n += 8
	pio.PutI16BE(b[n:], th.Layer)
	n += 2
	pio.PutI16BE(b[n:], th.AlternateGroup)
	n += 2
	PutFixed16(b[n:], th.Volume)
	n += 2
	n += 2
	for _, v := range th.Matrix {
		pio.PutI32BE(b[n:], v)
		n += 4
	}
	PutFixed32(b[n:], th.TrackWidth)
	n += 4
	PutFixed32(b[n:], th.TrackHeight)
	n += 4
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (th *TrackHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	(&th.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+4 {
		err = parseErr("Version", n+offset, err)
		return
	}
	th.Version = pio.U8(b[n:])
	th.Flags = pio.U24BE(b[n+1:])
	n += 4
	if th.Version == 1 {
		if len(b) < n+92 {
			err = parseErr("BodyV1", n+offset, err)
			return
		}
		th.CreateTime = GetTime64(b[n:])
		th.ModifyTime = GetTime64(b[n+8:])
		th.TrackID = pio.U32BE(b[n+16:])
		th.Duration = pio.U64BE(b[n+24:])
		n += 32
	} else {
		if len(b) < n+80 {
			err = parseErr("BodyV0", n+offset, err)
			return
		}
		th.CreateTime = GetTime32(b[n:])
		th.ModifyTime = GetTime32(b[n+4:])
		th.TrackID = pio.U32BE(b[n+8:])
		th.Duration = uint64(pio.U32BE(b[n+16:]))
		n += 20
	}
	n += 8
	th.Layer = pio.I16BE(b[n:])
	n += 2
	th.AlternateGroup = pio.I16BE(b[n:])
	n += 2
	th.Volume = GetFixed16(b[n:])
	n += 2
	n += 2
	for i := range th.Matrix {
		th.Matrix[i] = pio.I32BE(b[n:])
		n += 4
	}
	th.TrackWidth = GetFixed32(b[n:])
	n += 4
	th.TrackHeight = GetFixed32(b[n:])
	n += 4
	return
}

func (th TrackHeader) Children() []Atom {
	return nil
}
