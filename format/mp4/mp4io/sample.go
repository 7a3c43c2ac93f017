// Package mp4io
package mp4io

import (
	"github.com/teocci/go-mp4-demux/utils/bits/pio"
)

type SampleTable struct {
	SampleDesc        *SampleDesc
	TimeToSample      *TimeToSample
	CompositionOffset *CompositionOffset
	SampleToChunk     *SampleToChunk
	SyncSample        *SyncSample
	ChunkOffset       *ChunkOffset
	SampleSize        *SampleSize
	AtomPos
}

func (st SampleTable) Tag() Tag {
	return STBL
}

func (st SampleTable) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(STBL))
	n += st.marshal(b[8:]) + 8
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (st SampleTable) marshal(b []byte) (n int) {
	if st.SampleDesc != nil {
		n += st.SampleDesc.Marshal(b[n:])
	}
	if st.TimeToSample != nil {
		n += st.TimeToSample.Marshal(b[n:])
	}
	if st.CompositionOffset != nil {
		n += st.CompositionOffset.Marshal(b[n:])
	}
	if st.SampleToChunk != nil {
		n += st.SampleToChunk.Marshal(b[n:])
	}
	if st.SyncSample != nil {
		n += st.SyncSample.Marshal(b[n:])
	}
	if st.ChunkOffset != nil {
		n += st.ChunkOffset.Marshal(b[n:])
	}
	if st.SampleSize != nil {
		n += st.SampleSize.Marshal(b[n:])
	}
	return
}

func (st SampleTable) Len() (n int) {
	n += 8
	if st.SampleDesc != nil {
		n += st.SampleDesc.Len()
	}
	if st.TimeToSample != nil {
		n += st.TimeToSample.Len()
	}
	if st.CompositionOffset != nil {
		n += st.CompositionOffset.Len()
	}
	if st.SampleToChunk != nil {
		n += st.SampleToChunk.Len()
	}
	if st.SyncSample != nil {
		n += st.SyncSample.Len()
	}
	if st.ChunkOffset != nil {
		n += st.ChunkOffset.Len()
	}
	if st.SampleSize != nil {
		n += st.SampleSize.Len()
	}
	return
}

func (st *SampleTable) Unmarshal(b []byte, offset int) (n int, err error) {
	(&st.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case STSD:
			atom := &SampleDesc{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stsd", n+offset, err)
				return
			}
			st.SampleDesc = atom
		case STTS:
			atom := &TimeToSample{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stts", n+offset, err)
				return
			}
			st.TimeToSample = atom
		case CTTS:
			atom := &CompositionOffset{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("ctts", n+offset, err)
				return
			}
			st.CompositionOffset = atom
		case STSC:
			atom := &SampleToChunk{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stsc", n+offset, err)
				return
			}
			st.SampleToChunk = atom
		case STSS:
			atom := &SyncSample{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stss", n+offset, err)
				return
			}
			st.SyncSample = atom
		case STCO, CO64:
			atom := &ChunkOffset{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stco", n+offset, err)
				return
			}
			st.ChunkOffset = atom
		case STSZ:
			atom := &SampleSize{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stsz", n+offset, err)
				return
			}
			st.SampleSize = atom
		}
		n += size
	}
	return
}

func (st SampleTable) Children() (r []Atom) {
	if st.SampleDesc != nil {
		r = append(r, st.SampleDesc)
	}
	if st.TimeToSample != nil {
		r = append(r, st.TimeToSample)
	}
	if st.CompositionOffset != nil {
		r = append(r, st.CompositionOffset)
	}
	if st.SampleToChunk != nil {
		r = append(r, st.SampleToChunk)
	}
	if st.SyncSample != nil {
		r = append(r, st.SyncSample)
	}
	if st.ChunkOffset != nil {
		r = append(r, st.ChunkOffset)
	}
	if st.SampleSize != nil {
		r = append(r, st.SampleSize)
	}
	return
}

type TimeToSampleEntry struct {
	Count    uint32
	Duration uint32
}

type TimeToSample struct {
	Version uint8
	Flags   uint32
	Entries []TimeToSampleEntry
	AtomPos
}

func (ts TimeToSample) Tag() Tag {
	return STTS
}

func (ts TimeToSample) Len() int {
	return 8 + 8 + len(ts.Entries)*8
}

func (ts TimeToSample) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(STTS))
	n = 8
	pio.PutU8(b[n:], ts.Version)
	pio.PutU24BE(b[n+1:], ts.Flags)
	n += 4
	pio.PutU32BE(b[n:], uint32(len(ts.Entries)))
	n += 4
	for _, entry := range ts.Entries {
		pio.PutU32BE(b[n:], entry.Count)
		pio.PutU32BE(b[n+4:], entry.Duration)
		n += 8
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (ts *TimeToSample) Unmarshal(b []byte, offset int) (n int, err error) {
	(&ts.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Header", n+offset, err)
		return
	}
	ts.Version = pio.U8(b[n:])
	ts.Flags = pio.U24BE(b[n+1:])
	n += 4
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+count*8 {
		err = parseErr("Entries", n+offset, err)
		return
	}
	ts.Entries = make([]TimeToSampleEntry, count)
	for i := range ts.Entries {
		ts.Entries[i].Count = pio.U32BE(b[n:])
		ts.Entries[i].Duration = pio.U32BE(b[n+4:])
		n += 8
	}
	return
}

func (ts TimeToSample) Children() []Atom {
	return nil
}

type CompositionOffsetEntry struct {
	Count  uint32
	Offset uint32
}

type CompositionOffset struct {
	Version uint8
	Flags   uint32
	Entries []CompositionOffsetEntry
	AtomPos
}

func (co CompositionOffset) Tag() Tag {
	return CTTS
}

func (co CompositionOffset) Len() int {
	return 8 + 8 + len(co.Entries)*8
}

func (co CompositionOffset) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(CTTS))
	n = 8
	pio.PutU8(b[n:], co.Version)
	pio.PutU24BE(b[n+1:], co.Flags)
	n += 4
	pio.PutU32BE(b[n:], uint32(len(co.Entries)))
	n += 4
	for _, entry := range co.Entries {
		pio.PutU32BE(b[n:], entry.Count)
		pio.PutU32BE(b[n+4:], entry.Offset)
		n += 8
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (co *CompositionOffset) Unmarshal(b []byte, offset int) (n int, err error) {
	(&co.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Header", n+offset, err)
		return
	}
	co.Version = pio.U8(b[n:])
	co.Flags = pio.U24BE(b[n+1:])
	n += 4
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+count*8 {
		err = parseErr("Entries", n+offset, err)
		return
	}
	co.Entries = make([]CompositionOffsetEntry, count)
	for i := range co.Entries {
		co.Entries[i].Count = pio.U32BE(b[n:])
		co.Entries[i].Offset = pio.U32BE(b[n+4:])
		n += 8
	}
	return
}

func (co CompositionOffset) Children() []Atom {
	return nil
}

type SampleToChunkEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
	SampleDescId    uint32
}

type SampleToChunk struct {
	Version uint8
	Flags   uint32
	Entries []SampleToChunkEntry
	AtomPos
}

func (sc SampleToChunk) Tag() Tag {
	return STSC
}

func (sc SampleToChunk) Len() int {
	return 8 + 8 + len(sc.Entries)*12
}

func (sc SampleToChunk) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(STSC))
	n = 8
	pio.PutU8(b[n:], sc.Version)
	pio.PutU24BE(b[n+1:], sc.Flags)
	n += 4
	pio.PutU32BE(b[n:], uint32(len(sc.Entries)))
	n += 4
	for _, entry := range sc.Entries {
		pio.PutU32BE(b[n:], entry.FirstChunk)
		pio.PutU32BE(b[n+4:], entry.SamplesPerChunk)
		pio.PutU32BE(b[n+8:], entry.SampleDescId)
		n += 12
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (sc *SampleToChunk) Unmarshal(b []byte, offset int) (n int, err error) {
	(&sc.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Header", n+offset, err)
		return
	}
	sc.Version = pio.U8(b[n:])
	sc.Flags = pio.U24BE(b[n+1:])
	n += 4
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+count*12 {
		err = parseErr("Entries", n+offset, err)
		return
	}
	sc.Entries = make([]SampleToChunkEntry, count)
	for i := range sc.Entries {
		sc.Entries[i].FirstChunk = pio.U32BE(b[n:])
		sc.Entries[i].SamplesPerChunk = pio.U32BE(b[n+4:])
		sc.Entries[i].SampleDescId = pio.U32BE(b[n+8:])
		n += 12
	}
	return
}

func (sc SampleToChunk) Children() []Atom {
	return nil
}

// SyncSample lists 1-based sample numbers of sync (key) samples. A track
// without this box has every sample decodable on its own.
type SyncSample struct {
	Version uint8
	Flags   uint32
	Entries []uint32
	AtomPos
}

func (ss SyncSample) Tag() Tag {
	return STSS
}

func (ss SyncSample) Len() int {
	return 8 + 8 + len(ss.Entries)*4
}

func (ss SyncSample) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(STSS))
	n = 8
	pio.PutU8(b[n:], ss.Version)
	pio.PutU24BE(b[n+1:], ss.Flags)
	n += 4
	pio.PutU32BE(b[n:], uint32(len(ss.Entries)))
	n += 4
	for _, entry := range ss.Entries {
		pio.PutU32BE(b[n:], entry)
		n += 4
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (ss *SyncSample) Unmarshal(b []byte, offset int) (n int, err error) {
	(&ss.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("Header", n+offset, err)
		return
	}
	ss.Version = pio.U8(b[n:])
	ss.Flags = pio.U24BE(b[n+1:])
	n += 4
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+count*4 {
		err = parseErr("Entries", n+offset, err)
		return
	}
	ss.Entries = make([]uint32, count)
	for i := range ss.Entries {
		ss.Entries[i] = pio.U32BE(b[n:])
		n += 4
	}
	return
}

func (ss SyncSample) Children() []Atom {
	return nil
}

// ChunkOffset covers both stco and co64; entries are kept as 64-bit file
// offsets either way. Marshal writes the box back under its original tag.
type ChunkOffset struct {
	Version uint8
	Flags   uint32
	Entries []uint64
	Tag_    Tag
	AtomPos
}

func (co ChunkOffset) Tag() Tag {
	if co.Tag_ == CO64 {
		return CO64
	}
	return STCO
}

func (co ChunkOffset) entrySize() int {
	if co.Tag() == CO64 {
		return 8
	}
	return 4
}

func (co ChunkOffset) Len() int {
	return 8 + 8 + len(co.Entries)*co.entrySize()
}

func (co ChunkOffset) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(co.Tag()))
	n = 8
	pio.PutU8(b[n:], co.Version)
	pio.PutU24BE(b[n+1:], co.Flags)
	n += 4
	pio.PutU32BE(b[n:], uint32(len(co.Entries)))
	n += 4
	for _, entry := range co.Entries {
		if co.Tag() == CO64 {
			pio.PutU64BE(b[n:], entry)
			n += 8
		} else {
			pio.PutU32BE(b[n:], uint32(entry))
			n += 4
		}
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (co *ChunkOffset) Unmarshal(b []byte, offset int) (n int, err error) {
	(&co.AtomPos).setPos(offset, len(b))
	if co.Tag_ == 0 {
		co.Tag_ = Tag(pio.U32BE(b[4:]))
	}
	n += 8
	if len(b) < n+8 {
		err = parseErr("Header", n+offset, err)
		return
	}
	co.Version = pio.U8(b[n:])
	co.Flags = pio.U24BE(b[n+1:])
	n += 4
	count := int(pio.U32BE(b[n:]))
	n += 4
	size := co.entrySize()
	if len(b) < n+count*size {
		err = parseErr("Entries", n+offset, err)
		return
	}
	co.Entries = make([]uint64, count)
	for i := range co.Entries {
		if size == 8 {
			co.Entries[i] = pio.U64BE(b[n:])
		} else {
			co.Entries[i] = uint64(pio.U32BE(b[n:]))
		}
		n += size
	}
	return
}

func (co ChunkOffset) Children() []Atom {
	return nil
}

type SampleSize struct {
	Version    uint8
	Flags      uint32
	SampleSize uint32
	Entries    []uint32
	AtomPos
}

func (sz SampleSize) Tag() Tag {
	return STSZ
}

func (sz SampleSize) Len() (n int) {
	n = 8 + 12
	if sz.SampleSize == 0 {
		n += len(sz.Entries) * 4
	}
	return
}

func (sz SampleSize) Marshal(b []byte) (n int) {
	pio.PutU32BE(b[4:], uint32(STSZ))
	n = 8
	pio.PutU8(b[n:], sz.Version)
	pio.PutU24BE(b[n+1:], sz.Flags)
	n += 4
	pio.PutU32BE(b[n:], sz.SampleSize)
	n += 4
	pio.PutU32BE(b[n:], uint32(len(sz.Entries)))
	n += 4
	if sz.SampleSize == 0 {
		for _, entry := range sz.Entries {
			pio.PutU32BE(b[n:], entry)
			n += 4
		}
	}
	pio.PutU32BE(b[0:], uint32(n))
	return
}

func (sz *SampleSize) Unmarshal(b []byte, offset int) (n int, err error) {
	(&sz.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+12 {
		err = parseErr("Header", n+offset, err)
		return
	}
	sz.Version = pio.U8(b[n:])
	sz.Flags = pio.U24BE(b[n+1:])
	n += 4
	sz.SampleSize = pio.U32BE(b[n:])
	n += 4
	count := int(pio.U32BE(b[n:]))
	n += 4
	if sz.SampleSize == 0 {
		if len(b) < n+count*4 {
			err = parseErr("Entries", n+offset, err)
			return
		}
		sz.Entries = make([]uint32, count)
		for i := range sz.Entries {
			sz.Entries[i] = pio.U32BE(b[n:])
			n += 4
		}
	}
	return
}

func (sz SampleSize) Children() []Atom {
	return nil
}

// SampleCount derives the track's total sample count. With a fixed sample
// size stsz carries no per-sample entries, so the count comes from walking
// the chunk map instead.
func (sz SampleSize) SampleCount(sc *SampleToChunk, co *ChunkOffset) int {
	if sz.SampleSize == 0 {
		return len(sz.Entries)
	}
	if sc == nil || co == nil {
		return 0
	}
	groupIndex := 0
	count := 0
	for chunkIndex := range co.Entries {
		if groupIndex+1 < len(sc.Entries) &&
			uint32(chunkIndex+1) == sc.Entries[groupIndex+1].FirstChunk {
			groupIndex++
		}
		count += int(sc.Entries[groupIndex].SamplesPerChunk)
	}
	return count
}
