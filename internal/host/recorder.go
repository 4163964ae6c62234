package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/smallnest/ringbuffer"

	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
)

const (
	recorderBitDepth       = 16
	recorderBytesPerSample = recorderBitDepth / 8
	wavFormatPCM           = 1

	// recorderBufferBlocks is how many blocks the writer goroutine may fall behind.
	recorderBufferBlocks = 64
	recorderDrainEvery   = 20 * time.Millisecond
)

// RecorderStats is a snapshot of recorder counters.
type RecorderStats struct {
	WrittenBytes uint64 // bytes accepted on the audio side
	DroppedBytes uint64 // bytes dropped because the buffer was full or busy
	EncodedBytes uint64 // bytes written to the WAV encoder
}

// Recorder captures rendered blocks into a 16-bit PCM WAV file. The audio
// side only converts and copies into a byte ring with TryWrite; a separate
// goroutine started with Run drains the ring into the encoder.
type Recorder struct {
	path       string
	sampleRate int
	channels   int

	rb      *ringbuffer.RingBuffer
	scratch []byte // audio side conversion buffer

	file *os.File
	enc  *wav.Encoder

	written atomic.Uint64
	dropped atomic.Uint64
	encoded atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewRecorder creates path and prepares a WAV encoder for blocks of cfg's shape.
func NewRecorder(path string, cfg Config) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component(componentHost).
				Category(errors.CategoryFileIO).
				Context("operation", "create_recording_dir").
				Build()
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.New(err).
			Component(componentHost).
			Category(errors.CategoryFileIO).
			Context("operation", "create_recording").
			Build()
	}

	blockBytes := cfg.BlockSamples() * recorderBytesPerSample
	return &Recorder{
		path:       path,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		rb:         ringbuffer.New(blockBytes * recorderBufferBlocks),
		scratch:    make([]byte, blockBytes),
		file:       file,
		enc:        wav.NewEncoder(file, cfg.SampleRate, recorderBitDepth, cfg.Channels, wavFormatPCM),
	}, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// Write converts block to 16-bit PCM and queues it without blocking. It
// returns the number of bytes queued and dropped. Audio goroutine only.
func (r *Recorder) Write(block []float32) (written, dropped int) {
	n := len(block) * recorderBytesPerSample
	if n > len(r.scratch) {
		r.dropped.Add(uint64(n))
		return 0, n
	}

	buf := r.scratch[:n]
	for i, s := range block {
		binary.LittleEndian.PutUint16(buf[i*recorderBytesPerSample:], uint16(floatToPCM16(s)))
	}

	// Every write and read is a whole number of frames, so a partial
	// write still ends on a frame boundary.
	written, _ = r.rb.TryWrite(buf)
	dropped = n - written

	r.written.Add(uint64(written))
	if dropped > 0 {
		r.dropped.Add(uint64(dropped))
	}
	return written, dropped
}

// Run drains queued audio into the WAV file until ctx is cancelled, then
// flushes what is left and finalizes the file.
func (r *Recorder) Run(ctx context.Context) error {
	log := GetLogger().With(logger.String("path", r.path))
	log.Info("recording rendered output")

	frameBytes := r.channels * recorderBytesPerSample
	chunk := make([]byte, (len(r.scratch)*recorderBufferBlocks/frameBytes)*frameBytes)
	ints := &audio.IntBuffer{
		Data:           make([]int, len(chunk)/recorderBytesPerSample),
		Format:         &audio.Format{SampleRate: r.sampleRate, NumChannels: r.channels},
		SourceBitDepth: recorderBitDepth,
	}

	ticker := time.NewTicker(recorderDrainEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := r.drain(chunk, ints)
			if closeErr := r.Close(); err == nil {
				err = closeErr
			}
			stats := r.Stats()
			log.Info("recording finished",
				logger.Uint64("encoded_bytes", stats.EncodedBytes),
				logger.Uint64("dropped_bytes", stats.DroppedBytes))
			return err
		case <-ticker.C:
			if err := r.drain(chunk, ints); err != nil {
				log.Error("recording failed", logger.Error(err))
				_ = r.Close()
				return err
			}
		}
	}
}

// drain moves everything currently queued into the encoder.
func (r *Recorder) drain(chunk []byte, ints *audio.IntBuffer) error {
	for {
		n, err := r.rb.Read(chunk)
		if n > 0 {
			samples := n / recorderBytesPerSample
			for i := range samples {
				ints.Data[i] = int(int16(binary.LittleEndian.Uint16(chunk[i*recorderBytesPerSample:])))
			}
			full := ints.Data
			ints.Data = full[:samples]
			werr := r.enc.Write(ints)
			ints.Data = full
			if werr != nil {
				return fmt.Errorf("host: encode recording: %w", werr)
			}
			r.encoded.Add(uint64(n))
		}
		if err != nil {
			if errors.Is(err, ringbuffer.ErrIsEmpty) {
				return nil
			}
			return fmt.Errorf("host: read recording buffer: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// Close finalizes the WAV header and closes the file. Safe to call twice.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		encErr := r.enc.Close()
		fileErr := r.file.Close()
		r.closeErr = errors.Join(encErr, fileErr)
	})
	return r.closeErr
}

// Stats returns a snapshot of the recorder counters. Safe from any goroutine.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		WrittenBytes: r.written.Load(),
		DroppedBytes: r.dropped.Load(),
		EncodedBytes: r.encoded.Load(),
	}
}

// floatToPCM16 clamps s to [-1, 1] and scales it to a signed 16-bit sample.
func floatToPCM16(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return -math.MaxInt16
	default:
		return int16(s * math.MaxInt16)
	}
}
