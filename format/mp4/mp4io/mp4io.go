// Package mp4io
// Parses and serializes the ISO-BMFF box subset needed for progressive
// demuxing: the moov tree with its sample tables, the four known video
// decoder configuration records, and esds for audio.
package mp4io

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

type ParseError struct {
	Debug  string
	Offset int
	prev   *ParseError
}

func (pe *ParseError) Error() string {
	var s []string
	for p := pe; p != nil; p = p.prev {
		s = append(s, fmt.Sprintf("%s:%d", p.Debug, p.Offset))
	}
	return "mp4io: parse error: " + strings.Join(s, ",")
}

func parseErr(debug string, offset int, prev error) (err error) {
	_prev, _ := prev.(*ParseError)
	return &ParseError{Debug: debug, Offset: offset, prev: _prev}
}

var mp4Epoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)

func GetTime32(b []byte) time.Time {
	return mp4Epoch.Add(time.Second * time.Duration(pio.U32BE(b)))
}

func PutTime32(b []byte, t time.Time) {
	pio.PutU32BE(b, uint32(t.Sub(mp4Epoch)/time.Second))
}

func GetTime64(b []byte) time.Time {
	return mp4Epoch.Add(time.Second * time.Duration(pio.U64BE(b)))
}

func PutTime64(b []byte, t time.Time) {
	pio.PutU64BE(b, uint64(t.Sub(mp4Epoch)/time.Second))
}

func GetFixed16(b []byte) float64 {
	return float64(b[0]) + float64(b[1])/256.0
}

func PutFixed16(b []byte, f float64) {
	intpart, fracpart := math.Modf(f)
	b[0] = uint8(intpart)
	b[1] = uint8(fracpart * 256.0)
}

func GetFixed32(b []byte) float64 {
	return float64(pio.U16BE(b[0:2])) + float64(pio.U16BE(b[2:4]))/65536.0
}

func PutFixed32(b []byte, f float64) {
	intpart, fracpart := math.Modf(f)
	pio.PutU16BE(b[0:2], uint16(intpart))
	pio.PutU16BE(b[2:4], uint16(fracpart*65536.0))
}

// Tag is a four-character box type code.
type Tag uint32

func (t Tag) String() string {
	var b [4]byte
	pio.PutU32BE(b[:], uint32(t))
	for i := 0; i < 4; i++ {
		if b[i] == 0 {
			b[i] = ' '
		}
	}
	return string(b[:])
}

func StringToTag(tag string) Tag {
	var b [4]byte
	copy(b[:], tag)
	return Tag(pio.U32BE(b[:]))
}

const (
	FTYP = Tag(0x66747970)
	FREE = Tag(0x66726565)
	MDAT = Tag(0x6d646174)
	MOOV = Tag(0x6d6f6f76)
	MOOF = Tag(0x6d6f6f66)
	MVHD = Tag(0x6d766864)
	TRAK = Tag(0x7472616b)
	TKHD = Tag(0x746b6864)
	MDIA = Tag(0x6d646961)
	MDHD = Tag(0x6d646864)
	HDLR = Tag(0x68646c72)
	MINF = Tag(0x6d696e66)
	VMHD = Tag(0x766d6864)
	SMHD = Tag(0x736d6864)
	DINF = Tag(0x64696e66)
	DREF = Tag(0x64726566)
	URL  = Tag(0x75726c20)
	STBL = Tag(0x7374626c)
	STSD = Tag(0x73747364)
	STTS = Tag(0x73747473)
	CTTS = Tag(0x63747473)
	STSC = Tag(0x73747363)
	STSS = Tag(0x73747373)
	STSZ = Tag(0x7374737a)
	STCO = Tag(0x7374636f)
	CO64 = Tag(0x636f3634)

	AVC1 = Tag(0x61766331)
	HVC1 = Tag(0x68766331)
	HEV1 = Tag(0x68657631)
	VP09 = Tag(0x76703039)
	AV01 = Tag(0x61763031)
	MP4A = Tag(0x6d703461)

	AVCC = Tag(0x61766343)
	HVCC = Tag(0x68766343)
	VPCC = Tag(0x76706343)
	AV1C = Tag(0x61763143)
	ESDS = Tag(0x65736473)
)

// Atom is one parsed box. Marshal writes the box back out in big-endian
// form including its 8-byte header; Unmarshal consumes exactly the box's
// byte range.
type Atom interface {
	Pos() (int, int)
	Tag() Tag
	Marshal([]byte) int
	Unmarshal([]byte, int) (int, error)
	Len() int
	Children() []Atom
}

// AtomPos records where in the file the box came from.
type AtomPos struct {
	Offset int
	Size   int
}

func (ap AtomPos) Pos() (int, int) {
	return ap.Offset, ap.Size
}

func (ap *AtomPos) setPos(offset int, size int) {
	ap.Offset, ap.Size = offset, size
}

// Dummy keeps the raw bytes of a box the parser has no structure for.
type Dummy struct {
	Data []byte
	Tag_ Tag
	AtomPos
}

func (d Dummy) Tag() Tag {
	return d.Tag_
}

func (d Dummy) Len() int {
	return len(d.Data)
}

func (d Dummy) Marshal(b []byte) int {
	copy(b, d.Data)
	return len(d.Data)
}

func (d *Dummy) Unmarshal(b []byte, offset int) (n int, err error) {
	(&d.AtomPos).setPos(offset, len(b))
	d.Data = b
	n = len(b)
	return
}

func (d Dummy) Children() []Atom {
	return nil
}

// FindChildren walks the box tree depth-first for the first box of the tag.
func FindChildren(root Atom, tag Tag) Atom {
	if root.Tag() == tag {
		return root
	}
	for _, child := range root.Children() {
		if r := FindChildren(child, tag); r != nil {
			return r
		}
	}
	return nil
}

func FindChildrenByName(root Atom, tag string) Atom {
	return FindChildren(root, StringToTag(tag))
}
