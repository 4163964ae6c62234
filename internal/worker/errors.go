package worker

import (
	"github.com/danfengzi/obs-lv2/internal/errors"
)

const componentWorker = "worker"

var (
	// ErrAlreadyStarted is returned by Start on a worker that was started before.
	ErrAlreadyStarted = errors.New(errors.NewStd("worker: already started")).
				Component(componentWorker).
				Category(errors.CategoryState).
				Build()

	// ErrNotStarted is returned by Stop and Pump before Start.
	ErrNotStarted = errors.New(errors.NewStd("worker: not started")).
			Component(componentWorker).
			Category(errors.CategoryState).
			Build()

	// ErrNilInterface is returned by Start when no plugin is given.
	ErrNilInterface = errors.New(errors.NewStd("worker: plugin work interface is nil")).
			Component(componentWorker).
			Category(errors.CategoryValidation).
			Build()

	// ErrStopTimeout is returned by Stop when the worker is still inside a
	// callback after StopTimeout. The goroutine exits once the callback returns.
	ErrStopTimeout = errors.New(errors.NewStd("worker: timed out waiting for worker to stop")).
			Component(componentWorker).
			Category(errors.CategoryState).
			Build()
)
