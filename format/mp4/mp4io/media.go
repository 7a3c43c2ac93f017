// Package mp4io
package mp4io

import (
	"time"

	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

type Media struct {
	Header   *MediaHeader
	Handler  *HandlerRefer
	Info     *MediaInfo
	Unknowns []Atom
	AtomPos
}

func (m Media) Tag() Tag {
	return MDIA
}

func (m Media) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(MDIA))
	n += m.marshal(b[8:]) + 8
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (m Media) marshal(b []byte) (n int) {
	if m.Header != nil {
		n += m.Header.Marshal(b[n:])
	}
	if m.Handler != nil {
		n += m.Handler.Marshal(b[n:])
	}
	if m.Info != nil {
		n += m.Info.Marshal(b[n:])
	}
	for _, atom := range m.Unknowns {
		n += atom.Marshal(b[n:])
	}
	return
}

func (m Media) Len() (n int) {
	n += 8
	if m.Header != nil {
		n += m.Header.Len()
	}
	if m.Handler != nil {
		n += m.Handler.Len()
	}
	if m.Info != nil {
		n += m.Info.Len()
	}
	for _, atom := range m.Unknowns {
		n += atom.Len()
	}
	return
}

func (m *Media) Unmarshal(b []byte, offset int) (n int, err error) {
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
		case MDHD:
			atom := &MediaHeader{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mdhd", n+offset, err)
				return
			}
			m.Header = atom
		case HDLR:
			atom := &HandlerRefer{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("hdlr", n+offset, err)
				return
			}
			m.Handler = atom
		case MINF:
			atom := &MediaInfo{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("minf", n+offset, err)
				return
			}
			m.Info = atom
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

func (m Media) Children() (r []Atom) {
	if m.Header != nil {
		r = append(r, m.Header)
	}
	if m.Handler != nil {
		r = append(r, m.Handler)
	}
	if m.Info != nil {
		r = append(r, m.Info)
	}
	r = append(r, m.Unknowns...)
	return
}

type MediaHeader struct {
	Version    uint8
	Flags      uint32
	CreateTime time.Time
	ModifyTime time.Time
	TimeScale  uint32
	Duration   uint64
	Language   int16
	Quality    int16
	AtomPos
}

func (mh MediaHeader) Tag() Tag {
	return MDHD
}

func (mh MediaHeader) Len() int {
	return 8 + 24
}

func (mh MediaHeader) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(MDHD))
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
	pio.PutI16BE(b[n:], mh.Language)
	n += 2
	pio.PutI16BE(b[n:], mh.Quality)
	n += 2
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (mh *MediaHeader) Unmarshal(b []byte, offset int) (n int, err error) {
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
		if len(b) < n+32 {
			err = parseErr("BodyV1", n+offset, err)
			return
		}
		mh.CreateTime = GetTime64(b[n:])
		mh.ModifyTime = GetTime64(b[n+8:])
		mh.TimeScale = pio.U32BE(b[n+16:])
		mh.Duration = pio.U64BE(b[n+20:])
		n += 28
	} else {
		if len(b) < n+20 {
			err = parseErr("BodyV0", n+offset, err)
			return
		}
		mh.CreateTime = GetTime32(b[n:])
		mh.ModifyTime = GetTime32(b[n+4:])
		mh.TimeScale = pio.U32BE(b[n+8:])
		mh.Duration = uint64(pio.U32BE(b[n+12:]))
		n += 16
	}
	mh.Language = pio.I16BE(b[n:])
	n += 2
	mh.Quality = pio.I16BE(b[n:])
	n += 2
	return
}

func (mh MediaHeader) Children() []Atom {
	return nil
}

type HandlerRefer struct {
	Version uint8
	Flags   uint32
	Type    [4]byte
	SubType [4]byte
	Name    []byte
	AtomPos
}

func (hr HandlerRefer) Tag() Tag {
	return HDLR
}

func (hr HandlerRefer) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(HDLR))
	n = 8
	pio.PutU8(b[n:], hr.Version)
	pio.PutU24BE(b[n+1:], hr.Flags)
	n += 4
	copy(b[n:], hr.Type[:])
	n += 4
	copy(b[n:], hr.SubType[:])
	n += 4
	copy(b[n:], hr.Name)
	n += len(hr.Name)
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (hr HandlerRefer) Len() int {
	return 8 + 12 + len(hr.Name)
}

func (hr *HandlerRefer) Unmarshal(b []byte, offset int) (n int, err error) {
	(&hr.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+12 {
		err = parseErr("Body", n+offset, err)
		return
	}
	hr.Version = pio.U8(b[n:])
	hr.Flags = pio.U24BE(b[n+1:])
	n += 4
	copy(hr.Type[:], b[n:])
	n += 4
	copy(hr.SubType[:], b[n:])
	n += 4
	hr.Name = b[n:]
	n = len(b)
	return
}

func (hr HandlerRefer) Children() []Atom {
	return nil
}

type MediaInfo struct {
	Sound    *SoundMediaInfo
	Video    *VideoMediaInfo
	Data     *DataInfo
	Sample   *SampleTable
	Unknowns []Atom
	AtomPos
}

func (mi MediaInfo) Tag() Tag {
	return MINF
}

func (mi MediaInfo) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(MINF))
	n += mi.marshal(b[8:]) + 8
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (mi MediaInfo) marshal(b []byte) (n int) {
	if mi.Sound != nil {
		n += mi.Sound.Marshal(b[n:])
	}
	if mi.Video != nil {
		n += mi.Video.Marshal(b[n:])
	}
	if mi.Data != nil {
		n += mi.Data.Marshal(b[n:])
	}
	if mi.Sample != nil {
		n += mi.Sample.Marshal(b[n:])
	}
	for _, atom := range mi.Unknowns {
		n += atom.Marshal(b[n:])
	}
	return
}

func (mi MediaInfo) Len() (n int) {
	n += 8
	if mi.Sound != nil {
		n += mi.Sound.Len()
	}
	if mi.Video != nil {
		n += mi.Video.Len()
	}
	if mi.Data != nil {
		n += mi.Data.Len()
	}
	if mi.Sample != nil {
		n += mi.Sample.Len()
	}
	for _, atom := range mi.Unknowns {
		n += atom.Len()
	}
	return
}

func (mi *MediaInfo) Unmarshal(b []byte, offset int) (n int, err error) {
	(&mi.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case SMHD:
			atom := &SoundMediaInfo{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("smhd", n+offset, err)
				return
			}
			mi.Sound = atom
		case VMHD:
			atom := &VideoMediaInfo{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("vmhd", n+offset, err)
				return
			}
			mi.Video = atom
		case DINF:
			atom := &DataInfo{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("dinf", n+offset, err)
				return
			}
			mi.Data = atom
		case STBL:
			atom := &SampleTable{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stbl", n+offset, err)
				return
			}
			mi.Sample = atom
		default:
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			mi.Unknowns = append(mi.Unknowns, atom)
		}
		n += size
	}
	return
}

func (mi MediaInfo) Children() (r []Atom) {
	if mi.Sound != nil {
		r = append(r, mi.Sound)
	}
	if mi.Video != nil {
		r = append(r, mi.Video)
	}
	if mi.Data != nil {
		r = append(r, mi.Data)
	}
	if mi.Sample != nil {
		r = append(r, mi.Sample)
	}
	r = append(r, mi.Unknowns...)
	return
}

type SoundMediaInfo struct {
	Version uint8
	Flags   uint32
	Balance int16
	AtomPos
}

func (smi SoundMediaInfo) Tag() Tag {
	return SMHD
}

func (smi SoundMediaInfo) Len() int {
	return 8 + 8
}

func (smi SoundMediaInfo) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(SMHD))
	n = 8
	pio.PutU8(b[n:], smi.Version)
	pio.PutU24BE(b[n+1:], smi.Flags)
	n += 4
	pio.PutI16BE(b[n:], smi.Balance)
	n += 2
	n += 2
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (smi *SoundMediaInfo) Unmarshal(b []byte, offset int) (n int, err error) {
	(&smi.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Body", n+offset, err)
		return
	}
	smi.Version = pio.U8(b[n:])
	smi.Flags = pio.U24BE(b[n+1:])
	n += 4
	smi.Balance = pio.I16BE(b[n:])
	n += 4
	return
}

func (smi SoundMediaInfo) Children() []Atom {
	return nil
}

type VideoMediaInfo struct {
	Version      uint8
	Flags        uint32
	GraphicsMode int16
	OpColor      [3]int16
	AtomPos
}

func (vmi VideoMediaInfo) Tag() Tag {
	return VMHD
}

func (vmi VideoMediaInfo) Len() int {
	return 8 + 12
}

func (vmi VideoMediaInfo) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(VMHD))
	n = 8
	pio.PutU8(b[n:], vmi.Version)
	pio.PutU24BE(b[n+1:], vmi.Flags)
	n += 4
	pio.PutI16BE(b[n:], vmi.GraphicsMode)
	n += 2
	for _, v := range vmi.OpColor {
		pio.PutI16BE(b[n:], v)
		n += 2
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (vmi *VideoMediaInfo) Unmarshal(b []byte, offset int) (n int, err error) {
	(&vmi.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+12 {
		err = parseErr("Body", n+offset, err)
		return
	}
	vmi.Version = pio.U8(b[n:])
	vmi.Flags = pio.U24BE(b[n+1:])
	n += 4
	vmi.GraphicsMode = pio.I16BE(b[n:])
	n += 2
	for i := range vmi.OpColor {
		vmi.OpColor[i] = pio.I16BE(b[n:])
		n += 2
	}
	return
}

func (vmi VideoMediaInfo) Children() []Atom {
	return nil
}

type DataInfo struct {
	Refer    *DataRefer
	Unknowns []Atom
	AtomPos
}

func (di DataInfo) Tag() Tag {
	return DINF
}

func (di DataInfo) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(DINF))
	n = 8
	if di.Refer != nil {
		n += di.Refer.Marshal(b[n:])
	}
	for _, atom := range di.Unknowns {
		n += atom.Marshal(b[n:])
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (di DataInfo) Len() (n int) {
	n += 8
	if di.Refer != nil {
		n += di.Refer.Len()
	}
	for _, atom := range di.Unknowns {
		n += atom.Len()
	}
	return
}

func (di *DataInfo) Unmarshal(b []byte, offset int) (n int, err error) {
	(&di.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case DREF:
			atom := &DataRefer{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("dref", n+offset, err)
				return
			}
			di.Refer = atom
		default:
			atom := &Dummy{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("", n+offset, err)
				return
			}
			di.Unknowns = append(di.Unknowns, atom)
		}
		n += size
	}
	return
}

func (di DataInfo) Children() (r []Atom) {
	if di.Refer != nil {
		r = append(r, di.Refer)
	}
	r = append(r, di.Unknowns...)
	return
}

type DataRefer struct {
	Version uint8
	Flags   uint32
	Url     *DataReferUrl
	AtomPos
}

func (dr DataRefer) Tag() Tag {
	return DREF
}

func (dr DataRefer) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(DREF))
	n = 8
	pio.PutU8(b[n:], dr.Version)
	pio.PutU24BE(b[n+1:], dr.Flags)
	n += 4
	entryCount := 0
	if dr.Url != nil {
		entryCount = 1
	}
	pio.PutU32BE(b[n:], uint32(entryCount))
	n += 4
	if dr.Url != nil {
		n += dr.Url.Marshal(b[n:])
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (dr DataRefer) Len() (n int) {
	n += 8 + 8
	if dr.Url != nil {
		n += dr.Url.Len()
	}
	return
}

func (dr *DataRefer) Unmarshal(b []byte, offset int) (n int, err error) {
	(&dr.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Body", n+offset, err)
		return
	}
	dr.Version = pio.U8(b[n:])
	dr.Flags = pio.U24BE(b[n+1:])
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		if tag == URL {
			atom := &DataReferUrl{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("url ", n+offset, err)
				return
			}
			dr.Url = atom
		}
		n += size
	}
	return
}

func (dr DataRefer) Children() (r []Atom) {
	if dr.Url != nil {
		r = append(r, dr.Url)
	}
	return
}

type DataReferUrl struct {
	Version uint8
	Flags   uint32
	AtomPos
}

func (u DataReferUrl) Tag() Tag {
	return URL
}

func (u DataReferUrl) Len() int {
	return 8 + 4
}

func (u DataReferUrl) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(URL))
	n = 8
	pio.PutU8(b[n:], u.Version)
	pio.PutU24BE(b[n+1:], u.Flags)
	n += 4
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (u *DataReferUrl) Unmarshal(b []byte, offset int) (n int, err error) {
	(&u.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+4 {
		err = parseErr("Body", n+offset, err)
		return
	}
	u.Version = pio.U8(b[n:])
	u.Flags = pio.U24BE(b[n+1:])
	n += 4
	return
}

func (u DataReferUrl) Children() []Atom {
	return nil
}
