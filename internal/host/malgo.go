package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
)

const bytesPerFloat32 = 4

// MalgoDriver plays the engine's output on the default playback device. The
// device's data callback is the audio thread.
type MalgoDriver struct{}

// Name implements Driver.
func (*MalgoDriver) Name() string { return DriverMalgo }

// Run implements Driver.
func (*MalgoDriver) Run(ctx context.Context, e *Engine) error {
	log := GetLogger().With(logger.String("driver", DriverMalgo))
	cfg := e.Config()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("malgo", logger.String("message", message))
	})
	if err != nil {
		return errors.New(err).
			Component(componentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_audio_context").
			Build()
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockSize)

	adapter := newBlockAdapter(e)
	cycleErr := make(chan error, 1)
	onSendFrames := func(pOutput, _ []byte, frameCount uint32) {
		if err := adapter.fill(pOutput, int(frameCount)); err != nil {
			select {
			case cycleErr <- err:
			default:
			}
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		return errors.New(err).
			Component(componentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_playback_device").
			Build()
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return errors.New(err).
			Component(componentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "start_playback_device").
			Build()
	}

	log.Info("playback device started",
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("block_size", cfg.BlockSize),
		logger.Int("channels", cfg.Channels))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-cycleErr:
		runErr = fmt.Errorf("host: audio cycle failed: %w", err)
	}

	if err := device.Stop(); err != nil {
		log.Warn("failed to stop playback device", logger.Error(err))
	}
	log.Info("playback device stopped", logger.Uint64("cycles", e.Stats().Cycles))

	return runErr
}

// blockAdapter serves device callbacks of any frame count from fixed-size
// engine cycles, carrying the unread tail of a block to the next callback.
type blockAdapter struct {
	engine   *Engine
	channels int
	block    []float32
	pos      int // next unread sample in block
}

func newBlockAdapter(e *Engine) *blockAdapter {
	cfg := e.Config()
	block := make([]float32, cfg.BlockSamples())
	return &blockAdapter{
		engine:   e,
		channels: cfg.Channels,
		block:    block,
		pos:      len(block),
	}
}

// fill writes frames interleaved little-endian float32 frames into out.
func (a *blockAdapter) fill(out []byte, frames int) error {
	want := frames * a.channels
	want = min(want, len(out)/bytesPerFloat32)

	for i := 0; i < want; {
		if a.pos == len(a.block) {
			if err := a.engine.Cycle(a.block); err != nil {
				clear(out[i*bytesPerFloat32:])
				return err
			}
			a.pos = 0
		}
		n := min(want-i, len(a.block)-a.pos)
		for j := range n {
			binary.LittleEndian.PutUint32(out[(i+j)*bytesPerFloat32:], math.Float32bits(a.block[a.pos+j]))
		}
		a.pos += n
		i += n
	}
	return nil
}
