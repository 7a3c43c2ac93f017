// Package mp4
package mp4

import (
	"fmt"

	"github.com/teocci/go-mp4-demux/format/mp4/mp4io"
)

// cursor walks one track's sample tables sample by sample. It is created
// per extraction call and never shared; all positions are indices into the
// stbl child tables, all times are ticks of the track timescale.
type cursor struct {
	sample *mp4io.SampleTable

	sampleIndex         int
	sampleOffsetInChunk int64
	syncSampleIndex     int

	dts                    int64
	sttsEntryIndex         int
	sampleIndexInSttsEntry int

	cttsEntryIndex         int
	sampleIndexInCttsEntry int

	chunkGroupIndex    int
	chunkIndex         int
	sampleIndexInChunk int
}

func newCursor(trk *track) *cursor {
	return &cursor{sample: trk.sample}
}

func (c *cursor) count() int {
	return c.sample.SampleSize.SampleCount(c.sample.SampleToChunk, c.sample.ChunkOffset)
}

// setSampleIndex positions the cursor on an absolute sample index,
// recomputing every table sub-position from scratch.
func (c *cursor) setSampleIndex(index int) (err error) {
	found := false
	start := 0
	c.chunkGroupIndex = 0

	for c.chunkIndex = range c.sample.ChunkOffset.Entries {
		if c.chunkGroupIndex+1 < len(c.sample.SampleToChunk.Entries) &&
			uint32(c.chunkIndex+1) == c.sample.SampleToChunk.Entries[c.chunkGroupIndex+1].FirstChunk {
			c.chunkGroupIndex++
		}
		n := int(c.sample.SampleToChunk.Entries[c.chunkGroupIndex].SamplesPerChunk)
		if index >= start && index < start+n {
			found = true
			c.sampleIndexInChunk = index - start
			break
		}
		start += n
	}
	if !found {
		return fmt.Errorf("mp4: cannot locate sample index %d in chunk table", index)
	}

	if c.sample.SampleSize.SampleSize != 0 {
		c.sampleOffsetInChunk = int64(c.sampleIndexInChunk) * int64(c.sample.SampleSize.SampleSize)
	} else {
		if index >= len(c.sample.SampleSize.Entries) {
			return fmt.Errorf("mp4: sample index %d out of stsz range", index)
		}
		c.sampleOffsetInChunk = 0
		for i := index - c.sampleIndexInChunk; i < index; i++ {
			c.sampleOffsetInChunk += int64(c.sample.SampleSize.Entries[i])
		}
	}

	c.dts = 0
	start = 0
	found = false
	c.sttsEntryIndex = 0
	for c.sttsEntryIndex < len(c.sample.TimeToSample.Entries) {
		entry := c.sample.TimeToSample.Entries[c.sttsEntryIndex]
		n := int(entry.Count)
		if index >= start && index < start+n {
			c.sampleIndexInSttsEntry = index - start
			c.dts += int64(index-start) * int64(entry.Duration)
			found = true
			break
		}
		start += n
		c.dts += int64(n) * int64(entry.Duration)
		c.sttsEntryIndex++
	}
	if !found {
		return fmt.Errorf("mp4: cannot locate sample index %d in stts", index)
	}

	if c.hasCtts() {
		start = 0
		found = false
		c.cttsEntryIndex = 0
		for c.cttsEntryIndex < len(c.sample.CompositionOffset.Entries) {
			n := int(c.sample.CompositionOffset.Entries[c.cttsEntryIndex].Count)
			if index >= start && index < start+n {
				c.sampleIndexInCttsEntry = index - start
				found = true
				break
			}
			start += n
			c.cttsEntryIndex++
		}
		if !found {
			return fmt.Errorf("mp4: cannot locate sample index %d in ctts", index)
		}
	}

	if c.sample.SyncSample != nil {
		c.syncSampleIndex = 0
		for c.syncSampleIndex < len(c.sample.SyncSample.Entries)-1 {
			if c.sample.SyncSample.Entries[c.syncSampleIndex+1]-1 > uint32(index) {
				break
			}
			c.syncSampleIndex++
		}
	}

	c.sampleIndex = index
	return
}

func (c *cursor) hasCtts() bool {
	return c.sample.CompositionOffset != nil && len(c.sample.CompositionOffset.Entries) > 0
}

func (c *cursor) valid() bool {
	if c.chunkIndex >= len(c.sample.ChunkOffset.Entries) {
		return false
	}
	if c.chunkGroupIndex >= len(c.sample.SampleToChunk.Entries) {
		return false
	}
	if c.sttsEntryIndex >= len(c.sample.TimeToSample.Entries) {
		return false
	}
	if c.hasCtts() && c.cttsEntryIndex >= len(c.sample.CompositionOffset.Entries) {
		return false
	}
	if c.sample.SyncSample != nil && c.syncSampleIndex >= len(c.sample.SyncSample.Entries) {
		return false
	}
	if c.sample.SampleSize.SampleSize == 0 && c.sampleIndex >= len(c.sample.SampleSize.Entries) {
		return false
	}
	return true
}

// next advances one sample, updating every sub-position incrementally.
func (c *cursor) next() {
	c.sampleIndexInChunk++
	if uint32(c.sampleIndexInChunk) == c.sample.SampleToChunk.Entries[c.chunkGroupIndex].SamplesPerChunk {
		c.chunkIndex++
		c.sampleIndexInChunk = 0
		c.sampleOffsetInChunk = 0
	} else {
		if c.sample.SampleSize.SampleSize != 0 {
			c.sampleOffsetInChunk += int64(c.sample.SampleSize.SampleSize)
		} else {
			c.sampleOffsetInChunk += int64(c.sample.SampleSize.Entries[c.sampleIndex])
		}
	}

	if c.chunkGroupIndex+1 < len(c.sample.SampleToChunk.Entries) &&
		uint32(c.chunkIndex+1) == c.sample.SampleToChunk.Entries[c.chunkGroupIndex+1].FirstChunk {
		c.chunkGroupIndex++
	}

	sttsEntry := c.sample.TimeToSample.Entries[c.sttsEntryIndex]
	c.sampleIndexInSttsEntry++
	c.dts += int64(sttsEntry.Duration)
	if uint32(c.sampleIndexInSttsEntry) == sttsEntry.Count {
		c.sampleIndexInSttsEntry = 0
		c.sttsEntryIndex++
	}

	if c.hasCtts() {
		c.sampleIndexInCttsEntry++
		if uint32(c.sampleIndexInCttsEntry) == c.sample.CompositionOffset.Entries[c.cttsEntryIndex].Count {
			c.sampleIndexInCttsEntry = 0
			c.cttsEntryIndex++
		}
	}

	if c.sample.SyncSample != nil {
		entries := c.sample.SyncSample.Entries
		if c.syncSampleIndex+1 < len(entries) && entries[c.syncSampleIndex+1]-1 == uint32(c.sampleIndex+1) {
			c.syncSampleIndex++
		}
	}

	c.sampleIndex++
}

func (c *cursor) offset() int64 {
	return int64(c.sample.ChunkOffset.Entries[c.chunkIndex]) + c.sampleOffsetInChunk
}

func (c *cursor) size() int {
	if c.sample.SampleSize.SampleSize != 0 {
		return int(c.sample.SampleSize.SampleSize)
	}
	return int(c.sample.SampleSize.Entries[c.sampleIndex])
}

func (c *cursor) durationTicks() int64 {
	return int64(c.sample.TimeToSample.Entries[c.sttsEntryIndex].Duration)
}

// cts is the composition (presentation) timestamp in track ticks.
func (c *cursor) cts() int64 {
	if c.hasCtts() {
		return c.dts + int64(c.sample.CompositionOffset.Entries[c.cttsEntryIndex].Offset)
	}
	return c.dts
}

// isSync reports whether the current sample is a sync sample. A track
// without stss marks every sample as sync.
func (c *cursor) isSync() bool {
	if c.sample.SyncSample == nil {
		return true
	}
	if len(c.sample.SyncSample.Entries) == 0 {
		return false
	}
	return c.sample.SyncSample.Entries[c.syncSampleIndex]-1 == uint32(c.sampleIndex)
}

// timeToSampleIndex maps a tick timestamp to a sample index, snapping back
// to the previous sync sample so decoding can start there.
func (c *cursor) timeToSampleIndex(targetTs int64) int {
	targetIndex := 0

	startTs := int64(0)
	startIndex := 0
	endIndex := 0
	found := false
	for _, entry := range c.sample.TimeToSample.Entries {
		endTs := startTs + int64(entry.Count)*int64(entry.Duration)
		endIndex = startIndex + int(entry.Count)
		if targetTs >= startTs && targetTs < endTs {
			targetIndex = startIndex + int((targetTs-startTs)/int64(entry.Duration))
			found = true
		}
		startTs = endTs
		startIndex = endIndex
	}
	if !found {
		if targetTs < 0 || endIndex == 0 {
			targetIndex = 0
		} else {
			targetIndex = endIndex - 1
		}
	}

	if c.sample.SyncSample != nil {
		entries := c.sample.SyncSample.Entries
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i]-1 <= uint32(targetIndex) {
				targetIndex = int(entries[i] - 1)
				break
			}
		}
	}

	return targetIndex
}
