package sampler

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/danfengzi/obs-lv2/internal/errors"
)

// Sample is decoded audio ready for playback: interleaved float32 in the
// host's channel layout and sample rate.
type Sample struct {
	Path       string
	Channels   int
	Frames     int
	SourceRate int
	Data       []float32
}

// pcm is an interleaved decode in the file's own layout.
type pcm struct {
	rate     int
	channels int
	data     []float32
}

// LoadSample decodes path and converts it to sampleRate and channels.
// It allocates and blocks on I/O, so it runs on the worker only.
func LoadSample(path string, sampleRate, channels int) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component(componentSampler).
			Category(errors.CategoryFileIO).
			Context("operation", "open_sample").
			Build()
	}
	defer file.Close()

	var decoded pcm
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		decoded, err = decodeWAV(file)
	case ".flac":
		decoded, err = decodeFLAC(file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if decoded.channels <= 0 || decoded.rate <= 0 || len(decoded.data) < decoded.channels {
		return nil, fmt.Errorf("%w: no audio frames", ErrInvalidSample)
	}

	data := mapChannels(decoded.data, decoded.channels, channels)
	data = resampleLinear(data, channels, decoded.rate, sampleRate)

	return &Sample{
		Path:       path,
		Channels:   channels,
		Frames:     len(data) / channels,
		SourceRate: decoded.rate,
		Data:       data,
	}, nil
}

func decodeWAV(file *os.File) (pcm, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return pcm{}, fmt.Errorf("%w: not a valid WAV file", ErrInvalidSample)
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return pcm{}, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return pcm{}, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}

	data := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		data[i] = float32(s) / divisor
	}
	return pcm{rate: int(decoder.SampleRate), channels: int(decoder.NumChans), data: data}, nil
}

func decodeFLAC(file *os.File) (pcm, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return pcm{}, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return pcm{}, err
	}

	bytesPerSample := decoder.BitsPerSample / 8
	data := make([]float32, 0, int(decoder.TotalSamples)*decoder.NChannels)
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return pcm{}, fmt.Errorf("%w: %w", ErrInvalidSample, err)
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			var sample int32
			switch decoder.BitsPerSample {
			case 16:
				sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
			case 24:
				sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(int8(frame[i+2]))<<16
			case 32:
				sample = int32(binary.LittleEndian.Uint32(frame[i:]))
			}
			data = append(data, float32(sample)/divisor)
		}
	}
	return pcm{rate: decoder.SampleRate, channels: decoder.NChannels, data: data}, nil
}

// getAudioDivisor returns the full scale value for a PCM bit depth.
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidSample, bitDepth)
	}
}

// mapChannels converts interleaved audio between channel counts. Mono is
// spread to every output channel, a downmix to mono averages, and any
// other mismatch wraps source channels around the output.
func mapChannels(data []float32, from, to int) []float32 {
	if from == to {
		return data
	}
	frames := len(data) / from
	out := make([]float32, frames*to)
	for f := range frames {
		src := data[f*from : f*from+from]
		dst := out[f*to : f*to+to]
		if to == 1 {
			var sum float32
			for _, s := range src {
				sum += s
			}
			dst[0] = sum / float32(from)
			continue
		}
		for c := range dst {
			dst[c] = src[c%from]
		}
	}
	return out
}

// resampleLinear converts interleaved audio from one sample rate to another
// by linear interpolation between neighbouring frames.
func resampleLinear(data []float32, channels, from, to int) []float32 {
	if from == to {
		return data
	}
	frames := len(data) / channels
	ratio := float64(to) / float64(from)
	outFrames := max(int(float64(frames)*ratio), 1)
	out := make([]float32, outFrames*channels)

	for i := range outFrames {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= frames-1 {
			copy(out[i*channels:(i+1)*channels], data[(frames-1)*channels:])
			continue
		}
		frac := float32(pos - float64(idx))
		for c := range channels {
			a := data[idx*channels+c]
			b := data[(idx+1)*channels+c]
			out[i*channels+c] = a + (b-a)*frac
		}
	}
	return out
}
