package worker

import "time"

// Responder delivers results from Work back to the audio thread. Each call
// queues one frame; ring.ErrNoSpace means the response ring is full and the
// frame was not queued.
type Responder interface {
	Respond(payload []byte) error
}

// Interface is the work capability of a hosted plugin.
//
// Work runs on the worker goroutine and may block or allocate. WorkResponse
// runs on the audio thread from Pump and must not.
type Interface interface {
	Work(r Responder, payload []byte) error
	WorkResponse(payload []byte) error
}

// EndRunner is implemented by plugins that want a callback after every Pump,
// whether or not any responses were delivered.
type EndRunner interface {
	EndRun()
}

// Traffic directions used in metrics labels.
const (
	DirectionRequest  = "request"
	DirectionResponse = "response"
)

// Work outcomes used in metrics labels.
const (
	WorkStatusOK    = "ok"
	WorkStatusError = "error"
	WorkStatusPanic = "panic"
)

// MetricsRecorder receives worker events. Methods called from Schedule and
// Pump run on the audio thread and must not allocate.
type MetricsRecorder interface {
	RecordScheduled()
	RecordRejected(direction string)
	RecordProtocolError(direction string)
	RecordWork(status string, duration time.Duration)
	RecordDelivered()
	SetRunning(running bool)
}
