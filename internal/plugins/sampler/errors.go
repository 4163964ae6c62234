package sampler

import "github.com/danfengzi/obs-lv2/internal/errors"

const componentSampler = "plugins.sampler"

var (
	// ErrUnsupportedFormat is returned for files that are neither WAV nor FLAC.
	ErrUnsupportedFormat = errors.New(errors.NewStd("sampler: unsupported audio format")).
				Component(componentSampler).
				Category(errors.CategoryValidation).
				Build()

	// ErrInvalidSample is returned when a file decodes to nothing usable.
	ErrInvalidSample = errors.New(errors.NewStd("sampler: invalid sample file")).
				Component(componentSampler).
				Category(errors.CategoryAudioSource).
				Build()

	// ErrPathTooLong is returned by RequestLoad for paths that cannot fit a request.
	ErrPathTooLong = errors.New(errors.NewStd("sampler: sample path too long")).
			Component(componentSampler).
			Category(errors.CategoryValidation).
			Build()

	// ErrNoFreeSlot is returned by the worker when every slot holds a sample.
	ErrNoFreeSlot = errors.New(errors.NewStd("sampler: no free sample slot")).
			Component(componentSampler).
			Category(errors.CategoryLimit).
			Build()

	// ErrBadRequest is returned by the worker for malformed requests.
	ErrBadRequest = errors.New(errors.NewStd("sampler: malformed request")).
			Component(componentSampler).
			Category(errors.CategoryProtocol).
			Build()
)
