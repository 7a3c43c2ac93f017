// Package mp4
package mp4

import "errors"

var (
	// ErrInvalidContainer means the source was exhausted before any usable
	// top-level metadata (moov) could be parsed.
	ErrInvalidContainer = errors.New("mp4: container has no usable metadata")

	// ErrConfigNotFound means a video track carries none of the known
	// decoder configuration records (avcC/hvcC/vpcC/av1C).
	ErrConfigNotFound = errors.New("mp4: video decoder configuration not found")

	// ErrNotLoaded means Extract was called before a successful Load.
	ErrNotLoaded = errors.New("mp4: metadata not loaded")

	// ErrExtractionBusy means another extraction is in flight on the same
	// handle; callers must serialize Extract calls per handle.
	ErrExtractionBusy = errors.New("mp4: extraction already in progress on this handle")
)
