// Package mp4io
package mp4io

import (
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

// videoConfTags maps a visual sample entry tag to the decoder configuration
// box it carries. Adding a codec means adding a row here.
var videoConfTags = map[Tag]Tag{
	AVC1: AVCC,
	HVC1: HVCC,
	HEV1: HVCC,
	VP09: VPCC,
	AV01: AV1C,
}

type SampleDesc struct {
	Version  uint8
	Flags    uint32
	Video    *VisualDesc
	Audio    *MP4ADesc
	Unknowns []Atom
	AtomPos
}

func (sd SampleDesc) Tag() Tag {
	return STSD
}

func (sd SampleDesc) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(STSD))
	n = 8
	pio.PutU8(b[n:], sd.Version)
	pio.PutU24BE(b[n+1:], sd.Flags)
	n += 4
	pio.PutU32BE(b[n:], uint32(sd.entryCount()))
	n += 4
	if sd.Video != nil {
		n += sd.Video.Marshal(b[n:])
	}
	if sd.Audio != nil {
		n += sd.Audio.Marshal(b[n:])
	}
	for _, atom := range sd.Unknowns {
		n += atom.Marshal(b[n:])
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (sd SampleDesc) entryCount() (n int) {
	if sd.Video != nil {
		n++
	}
	if sd.Audio != nil {
		n++
	}
	n += len(sd.Unknowns)
	return
}

func (sd SampleDesc) Len() (n int) {
	n += 8 + 8
	if sd.Video != nil {
		n += sd.Video.Len()
	}
	if sd.Audio != nil {
		n += sd.Audio.Len()
	}
	for _, atom := range sd.Unknowns {
		n += atom.Len()
	}
	return
}

func (sd *SampleDesc) Unmarshal(b []byte, offset int) (n int, err error) {
	(&sd.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Header", n+offset, err)
		return
	}
	sd.Version = pio.U8(b[n:])
	sd.Flags = pio.U24BE(b[n+1:])
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		if _, isVideo := videoConfTags[tag]; isVideo && sd.Video == nil {
			atom := &VisualDesc{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr(tag.String(), n+offset, err)
				return
			}
			sd.Video = atom
		} else if tag == MP4A && sd.Audio == nil {
			atom := &MP4ADesc{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mp4a", n+offset, err)
				return
			}
			sd.Audio = atom
		} else {
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			sd.Unknowns = append(sd.Unknowns, atom)
		}
		n += size
	}
	return
}

func (sd SampleDesc) Children() (r []Atom) {
	if sd.Video != nil {
		r = append(r, sd.Video)
	}
	if sd.Audio != nil {
		r = append(r, sd.Audio)
	}
	r = append(r, sd.Unknowns...)
	return
}

// VisualDesc is a visual sample entry (avc1/hvc1/hev1/vp09/av01); the entry
// layout is identical across codecs, only the configuration child differs.
type VisualDesc struct {
	Tag_                 Tag
	DataRefIdx           int16
	Version              int16
	Revision             int16
	Vendor               int32
	TemporalQuality      int32
	SpatialQuality       int32
	Width                int16
	Height               int16
	HorizontalResolution float64
	VerticalResolution   float64
	FrameCount           int16
	CompressorName       [32]byte
	Depth                int16
	ColorTableId         int16
	Conf                 *VideoConf
	Unknowns             []Atom
	AtomPos
}

func (vd VisualDesc) Tag() Tag {
	return vd.Tag_
}

const lenVisualDescBody = 78

func (vd VisualDesc) Len() (n int) {
	n += 8 + lenVisualDescBody
	if vd.Conf != nil {
		n += vd.Conf.Len()
	}
	for _, atom := range vd.Unknowns {
		n += atom.Len()
	}
	return
}

func (vd VisualDesc) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(vd.Tag_))
	n = 8
	n += 6
	pio.PutI16BE(b[n:], vd.DataRefIdx)
	n += 2
	pio.PutI16BE(b[n:], vd.Version)
	n += 2
	pio.PutI16BE(b[n:], vd.Revision)
	n += 2
	pio.PutI32BE(b[n:], vd.Vendor)
	n += 4
	pio.PutI32BE(b[n:], vd.TemporalQuality)
	n += 4
	pio.PutI32BE(b[n:], vd.SpatialQuality)
	n += 4
	pio.PutI16BE(b[n:], vd.Width)
	n += 2
	pio.PutI16BE(b[n:], vd.Height)
	n += 2
	PutFixed32(b[n:], vd.HorizontalResolution)
	n += 4
	PutFixed32(b[n:], vd.VerticalResolution)
	n += 4
	n += 4
	pio.PutI16BE(b[n:], vd.FrameCount)
	n += 2
	copy(b[n:], vd.CompressorName[:])
	n += 32
	pio.PutI16BE(b[n:], vd.Depth)
	n += 2
	pio.PutI16BE(b[n:], vd.ColorTableId)
	n += 2
	if vd.Conf != nil {
		n += vd.Conf.Marshal(b[n:])
	}
	for _, atom := range vd.Unknowns {
		n += atom.Marshal(b[n:])
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (vd *VisualDesc) Unmarshal(b []byte, offset int) (n int, err error) {
	(&vd.AtomPos).setPos(offset, len(b))
	if vd.Tag_ == 0 {
		vd.Tag_ = Tag(pio.U32BE(b[4:]))
	}
	n += 8
	if len(b) < n+lenVisualDescBody {
		err = parseErr("Body", n+offset, err)
		return
	}
	n += 6
	vd.DataRefIdx = pio.I16BE(b[n:])
	n += 2
	vd.Version = pio.I16BE(b[n:])
	n += 2
	vd.Revision = pio.I16BE(b[n:])
	n += 2
	vd.Vendor = pio.I32BE(b[n:])
	n += 4
	vd.TemporalQuality = pio.I32BE(b[n:])
	n += 4
	vd.SpatialQuality = pio.I32BE(b[n:])
	n += 4
	vd.Width = pio.I16BE(b[n:])
	n += 2
	vd.Height = pio.I16BE(b[n:])
	n += 2
	vd.HorizontalResolution = GetFixed32(b[n:])
	n += 4
	vd.VerticalResolution = GetFixed32(b[n:])
	n += 4
	n += 4
	vd.FrameCount = pio.I16BE(b[n:])
	n += 2
	copy(vd.CompressorName[:], b[n:])
	n += 32
	vd.Depth = pio.I16BE(b[n:])
	n += 2
	vd.ColorTableId = pio.I16BE(b[n:])
	n += 2
	confTag := videoConfTags[vd.Tag_]
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		if tag == confTag {
			atom := &VideoConf{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr(tag.String(), n+offset, err)
				return
			}
			vd.Conf = atom
		} else {
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			vd.Unknowns = append(vd.Unknowns, atom)
		}
		n += size
	}
	return
}

func (vd VisualDesc) Children() (r []Atom) {
	if vd.Conf != nil {
		r = append(r, vd.Conf)
	}
	r = append(r, vd.Unknowns...)
	return
}

// VideoConf holds a decoder configuration record (avcC/hvcC/vpcC/av1C) as
// raw bytes; Data excludes the 8-byte box header.
type VideoConf struct {
	Tag_ Tag
	Data []byte
	AtomPos
}

func (vc VideoConf) Tag() Tag {
	return vc.Tag_
}

func (vc VideoConf) Len() int {
	return 8 + len(vc.Data)
}

func (vc VideoConf) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(vc.Tag_))
	n = 8
	copy(b[n:], vc.Data)
	n += len(vc.Data)
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (vc *VideoConf) Unmarshal(b []byte, offset int) (n int, err error) {
	(&vc.AtomPos).setPos(offset, len(b))
	if vc.Tag_ == 0 {
		vc.Tag_ = Tag(pio.U32BE(b[4:]))
	}
	n += 8
	vc.Data = b[n:]
	n = len(b)
	return
}

func (vc VideoConf) Children() []Atom {
	return nil
}

type MP4ADesc struct {
	DataRefIdx       int16
	Version          int16
	RevisionLevel    int16
	Vendor           int32
	NumberOfChannels int16
	SampleSize       int16
	CompressionId    int16
	SampleRate       float64
	Conf             *ElemStreamDesc
	Unknowns         []Atom
	AtomPos
}

func (ad MP4ADesc) Tag() Tag {
	return MP4A
}

const lenMP4ADescBody = 28

func (ad MP4ADesc) Len() (n int) {
	n += 8 + lenMP4ADescBody
	if ad.Conf != nil {
		n += ad.Conf.Len()
	}
	for _, atom := range ad.Unknowns {
		n += atom.Len()
	}
	return
}

func (ad MP4ADesc) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(MP4A))
	n = 8
	n += 6
	pio.PutI16BE(b[n:], ad.DataRefIdx)
	n += 2
	pio.PutI16BE(b[n:], ad.Version)
	n += 2
	pio.PutI16BE(b[n:], ad.RevisionLevel)
	n += 2
	pio.PutI32BE(b[n:], ad.Vendor)
	n += 4
	pio.PutI16BE(b[n:], ad.NumberOfChannels)
	n += 2
	pio.PutI16BE(b[n:], ad.SampleSize)
	n += 2
	pio.PutI16BE(b[n:], ad.CompressionId)
	n += 2
	n += 2
	PutFixed32(b[n:], ad.SampleRate)
	n += 4
	if ad.Conf != nil {
		n += ad.Conf.Marshal(b[n:])
	}
	for _, atom := range ad.Unknowns {
		n += atom.Marshal(b[n:])
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (ad *MP4ADesc) Unmarshal(b []byte, offset int) (n int, err error) {
	(&ad.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+lenMP4ADescBody {
		err = parseErr("Body", n+offset, err)
		return
	}
	n += 6
	ad.DataRefIdx = pio.I16BE(b[n:])
	n += 2
	ad.Version = pio.I16BE(b[n:])
	n += 2
	ad.RevisionLevel = pio.I16BE(b[n:])
	n += 2
	ad.Vendor = pio.I32BE(b[n:])
	n += 4
	ad.NumberOfChannels = pio.I16BE(b[n:])
	n += 2
	ad.SampleSize = pio.I16BE(b[n:])
	n += 2
	ad.CompressionId = pio.I16BE(b[n:])
	n += 2
	n += 2
	ad.SampleRate = GetFixed32(b[n:])
	n += 4
	// QuickTime version 1 sound descriptions insert 16 extra bytes before
	// the child boxes.
	if ad.Version == 1 {
		if len(b) < n+16 {
			err = parseErr("V1Extra", n+offset, err)
			return
		}
		n += 16
	}
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case ESDS:
			atom := &ElemStreamDesc{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("esds", n+offset, err)
				return
			}
			ad.Conf = atom
		default:
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			ad.Unknowns = append(ad.Unknowns, atom)
		}
		n += size
	}
	return
}

func (ad MP4ADesc) Children() (r []Atom) {
	if ad.Conf != nil {
		r = append(r, ad.Conf)
	}
	r = append(r, ad.Unknowns...)
	return
}
