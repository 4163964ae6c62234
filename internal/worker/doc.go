// Package worker offloads non-real-time work from an audio callback to a
// dedicated goroutine.
//
// The audio thread calls Schedule to queue an opaque request and Pump once
// per cycle to apply whatever responses the worker has produced. Both calls
// go through lock-free framed rings (see package ring), so neither blocks,
// takes a lock or allocates.
//
// The worker goroutine waits on a wake channel signalled by Schedule, with a
// poll timer as a fallback, drains one request at a time and hands it to the
// plugin's Work method. Work may answer any number of times through the
// Responder it is given; each answer becomes one WorkResponse call on the
// audio thread during a later Pump.
//
//	w, err := worker.New(worker.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx, plugin); err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	// audio callback
//	_ = w.Schedule(req) // ring.ErrNoSpace means try again next cycle
//	_ = w.Pump()
//
// Payload bytes are never interpreted here.
package worker
