// Package mp4io
package mp4io

import (
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

const (
	MP4ESDescrTag          = 3
	MP4DecConfigDescrTag   = 4
	MP4DecSpecificDescrTag = 5
)

// ElemStreamDesc is the esds box. Only the decoder-specific configuration
// bytes are retained from the descriptor chain.
type ElemStreamDesc struct {
	DecConfig []byte
	TrackId   uint16
	AtomPos
}

func (esd ElemStreamDesc) Tag() Tag {
	return ESDS
}

func (esd ElemStreamDesc) Children() []Atom {
	return nil
}

func (esd ElemStreamDesc) lenDescHdr() int {
	return 5
}

func (esd ElemStreamDesc) lenESDescHdr() int {
	return esd.lenDescHdr() + 3
}

func (esd ElemStreamDesc) lenDecConfigDescHdr() int {
	return esd.lenDescHdr() + 2 + 3 + 4 + 4 + esd.lenDescHdr()
}

func (esd ElemStreamDesc) Len() int {
	return 8 + 4 + esd.lenESDescHdr() + esd.lenDecConfigDescHdr() + len(esd.DecConfig) + esd.lenDescHdr() + 1
}

func (esd ElemStreamDesc) fillLength(b []byte, length int) (n int) {
	for i := 3; i > 0; i-- {
		b[n] = uint8(length>>uint(7*i))&0x7f | 0x80
		n++
	}
	b[n] = uint8(length & 0x7f)
	n++
	return
}

func (esd ElemStreamDesc) fillDescHdr(b []byte, tag uint8, datalen int) (n int) {
	b[n] = tag
	n++
	n += esd.fillLength(b[n:], datalen)
	return
}

func (esd ElemStreamDesc) fillESDescHdr(b []byte, datalen int) (n int) {
	n += esd.fillDescHdr(b[n:], MP4ESDescrTag, datalen)
	pio.PutU16BE(b[n:], esd.TrackId)
	n += 2
	b[n] = 0 // stream priority
	n++
	return
}

func (esd ElemStreamDesc) fillDecConfigDescHdr(b []byte, datalen int) (n int) {
	n += esd.fillDescHdr(b[n:], MP4DecConfigDescrTag, datalen)
	b[n] = 0x40 // object type: MPEG-4 audio
	n++
	b[n] = 0x15 // stream type: audio
	n++
	pio.PutU24BE(b[n:], 0) // buffer size
	n += 3
	pio.PutU32BE(b[n:], 200000) // max bitrate
	n += 4
	pio.PutU32BE(b[n:], 0) // avg bitrate
	n += 4
	n += esd.fillDescHdr(b[n:], MP4DecSpecificDescrTag, datalen-n)
	return
}

func (esd ElemStreamDesc) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(ESDS))
	n += 8
	pio.PutU32BE(b[n:], 0) // version + flags
	n += 4
	dec := len(esd.DecConfig)
	// ESDesc payload: ESID+flags, the DecConfig descriptor, then a minimal
	// SL config descriptor.
	n += esd.fillESDescHdr(b[n:], 3+esd.lenDecConfigDescHdr()+dec+esd.lenDescHdr()+1)
	n += esd.fillDecConfigDescHdr(b[n:], esd.lenDecConfigDescHdr()-esd.lenDescHdr()+dec)
	copy(b[n:], esd.DecConfig)
	n += dec
	n += esd.fillDescHdr(b[n:], 0x06, 1)
	b[n] = 0x02
	n++
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (esd *ElemStreamDesc) Unmarshal(b []byte, offset int) (n int, err error) {
	if len(b) < 12 {
		err = parseErr("hdr", offset, err)
		return
	}
	(&esd.AtomPos).setPos(offset, len(b))
	n += 8
	n += 4
	return esd.parseDesc(b[n:], offset+n)
}

func (esd *ElemStreamDesc) parseDesc(b []byte, offset int) (n int, err error) {
	var hdrlen int
	var datalen int
	var tag uint8
	if hdrlen, tag, datalen, err = esd.parseDescHdr(b, offset); err != nil {
		return
	}
	n += hdrlen

	if len(b) < n+datalen {
		err = parseErr("datalen", offset+n, err)
		return
	}

	switch tag {
	case MP4ESDescrTag:
		// ES_ID(2) + flags(1), then nested descriptors
		if len(b) < n+3 {
			err = parseErr("MP4ESDescrTag", offset+n, err)
			return
		}
		esd.TrackId = pio.U16BE(b[n:])
		if _, err = esd.parseDesc(b[n+3:], offset+n+3); err != nil {
			return
		}

	case MP4DecConfigDescrTag:
		const size = 2 + 3 + 4 + 4
		if len(b) < n+size {
			err = parseErr("MP4DecConfigDescrTag", offset+n, err)
			return
		}
		if _, err = esd.parseDesc(b[n+size:], offset+n+size); err != nil {
			return
		}

	case MP4DecSpecificDescrTag:
		esd.DecConfig = b[n : n+datalen]
	}

	n += datalen
	return
}

func (esd *ElemStreamDesc) parseLength(b []byte, offset int) (n int, length int, err error) {
	for n < 4 {
		if len(b) < n+1 {
			err = parseErr("len", offset+n, err)
			return
		}
		c := b[n]
		n++
		length = (length << 7) | (int(c) & 0x7f)
		if c&0x80 == 0 {
			break
		}
	}
	return
}

func (esd *ElemStreamDesc) parseDescHdr(b []byte, offset int) (n int, tag uint8, datalen int, err error) {
	if len(b) < n+1 {
		err = parseErr("tag", offset+n, err)
		return
	}
	tag = b[n]
	n++
	var lenlen int
	if lenlen, datalen, err = esd.parseLength(b[n:], offset+n); err != nil {
		return
	}
	n += lenlen
	return
}
