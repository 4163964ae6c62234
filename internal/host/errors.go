package host

import (
	"github.com/danfengzi/obs-lv2/internal/errors"
)

const componentHost = "host"

var (
	// ErrInvalidConfig wraps every host configuration problem.
	ErrInvalidConfig = errors.New(errors.NewStd("host: invalid configuration")).
				Component(componentHost).
				Category(errors.CategoryConfiguration).
				Build()

	// ErrUnknownDriver is returned by NewDriver for an unsupported driver name.
	ErrUnknownDriver = errors.New(errors.NewStd("host: unknown driver")).
				Component(componentHost).
				Category(errors.CategoryValidation).
				Build()

	// ErrBlockSize is returned by Cycle callers that pass a wrongly sized buffer.
	ErrBlockSize = errors.New(errors.NewStd("host: output buffer does not match block size")).
			Component(componentHost).
			Category(errors.CategoryValidation).
			Build()
)
