package ring

import (
	"github.com/danfengzi/obs-lv2/internal/errors"
)

// Sentinels are built once so the audio thread can return them without
// allocating. Compare with errors.Is.
var (
	// ErrNoSpace reports backpressure: the frame does not fit right now and
	// the ring is unchanged. The caller decides whether to drop or retry.
	ErrNoSpace = errors.New(errors.NewStd("ring: not enough space for frame")).
			Component("ring").
			Category(errors.CategoryLimit).
			Build()

	// ErrFrameTooLarge reports a payload that could never fit in this ring.
	ErrFrameTooLarge = errors.New(errors.NewStd("ring: frame larger than ring capacity")).
				Component("ring").
				Category(errors.CategoryValidation).
				Build()

	// ErrBufferTooSmall reports a destination buffer shorter than the next
	// frame. The frame stays in the ring.
	ErrBufferTooSmall = errors.New(errors.NewStd("ring: destination buffer smaller than frame")).
				Component("ring").
				Category(errors.CategoryValidation).
				Build()

	// ErrCorruptFrame reports a header announcing more bytes than are committed.
	ErrCorruptFrame = errors.New(errors.NewStd("ring: frame header exceeds committed bytes")).
			Component("ring").
			Category(errors.CategoryValidation).
			Build()

	// ErrInvalidCapacity is returned by New for a capacity outside [MinCapacity, MaxCapacity].
	ErrInvalidCapacity = errors.New(errors.NewStd("ring: capacity out of range")).
				Component("ring").
				Category(errors.CategoryConfiguration).
				Build()
)

// IsProtocolError reports whether err is a framing contract violation, as
// opposed to backpressure.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrBufferTooSmall) ||
		errors.Is(err, ErrCorruptFrame)
}
