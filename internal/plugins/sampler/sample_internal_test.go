package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapChannels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		data     []float32
		from, to int
		want     []float32
	}{
		{name: "same", data: []float32{1, 2}, from: 2, to: 2, want: []float32{1, 2}},
		{name: "mono to stereo", data: []float32{0.5, -0.5}, from: 1, to: 2, want: []float32{0.5, 0.5, -0.5, -0.5}},
		{name: "stereo to mono", data: []float32{1, 0, 0.5, 0.5}, from: 2, to: 1, want: []float32{0.5, 0.5}},
		{name: "stereo to quad", data: []float32{1, 2}, from: 2, to: 4, want: []float32{1, 2, 1, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, mapChannels(tc.data, tc.from, tc.to))
		})
	}
}

func TestResampleLinear(t *testing.T) {
	t.Parallel()

	t.Run("same rate is a no-op", func(t *testing.T) {
		t.Parallel()
		data := []float32{1, 2, 3}
		assert.Equal(t, data, resampleLinear(data, 1, 48000, 48000))
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		t.Parallel()
		out := resampleLinear([]float32{0, 1, 2, 3}, 1, 1, 2)
		require.Len(t, out, 8)
		assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}, toFloat64(out), 1e-6)
	})

	t.Run("downsample keeps channels apart", func(t *testing.T) {
		t.Parallel()
		out := resampleLinear([]float32{0, 10, 1, 11, 2, 12, 3, 13}, 2, 2, 1)
		require.Len(t, out, 4)
		assert.InDeltaSlice(t, []float64{0, 10, 2, 12}, toFloat64(out), 1e-6)
	})
}

func TestGetAudioDivisor(t *testing.T) {
	t.Parallel()

	for depth, want := range map[int]float32{16: 32768, 24: 8388608, 32: 2147483648} {
		got, err := getAudioDivisor(depth)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 0)
	}

	_, err := getAudioDivisor(8)
	require.ErrorIs(t, err, ErrInvalidSample)
}

// acceptAll is a Scheduler that takes everything.
type acceptAll struct {
	payloads [][]byte
}

func (s *acceptAll) Schedule(payload []byte) error {
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	return nil
}

func TestPlaybackLoopsWithGain(t *testing.T) {
	t.Parallel()

	sched := &acceptAll{}
	p := New(sched, Config{SampleRate: 48000, Channels: 2, Gain: 0.5})
	p.slots[1].Store(&Sample{Channels: 2, Frames: 3, Data: []float32{1, -1, 0.5, -0.5, 0.25, -0.25}})

	require.NoError(t, p.WorkResponse([]byte{opLoaded, 1}))

	out := make([]float32, 2*4)
	p.Process(out, 4)
	assert.Equal(t, []float32{0.5, -0.5, 0.25, -0.25, 0.125, -0.125, 0.5, -0.5}, out)

	// Installing another sample frees the one it replaces.
	p.slots[2].Store(&Sample{Channels: 2, Frames: 1, Data: []float32{0, 0}})
	require.NoError(t, p.WorkResponse([]byte{opLoaded, 2}))
	require.Len(t, sched.payloads, 1)
	assert.Equal(t, []byte{opFree, 1}, sched.payloads[0])
	assert.Equal(t, uint64(2), p.Stats().Installed)
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
