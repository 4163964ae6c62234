package worker

import (
	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/ring"
)

// responder is the Responder handed to Work. It only runs on the worker
// goroutine, so it is the sole producer of the response ring.
type responder struct {
	w *Worker
}

func (r *responder) Respond(payload []byte) error {
	w := r.w
	if err := w.responses.Enqueue(payload); err != nil {
		if errors.Is(err, ring.ErrNoSpace) {
			w.stats.responsesRejected.Add(1)
			if w.metrics != nil {
				w.metrics.RecordRejected(DirectionResponse)
			}
			if w.warn.Allow() {
				w.log.Warn("response ring full, response dropped",
					logger.Int("payload_bytes", len(payload)),
					logger.Int("write_space", w.responses.WriteSpace()))
			}
		} else {
			w.stats.protocolErrors.Add(1)
			if w.metrics != nil {
				w.metrics.RecordProtocolError(DirectionResponse)
			}
		}
		return err
	}
	w.stats.responded.Add(1)
	return nil
}
