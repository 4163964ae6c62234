package sampler

import (
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
)

// decodeCache keeps recently decoded samples keyed by path, file identity
// and output format, so loading an unchanged file again skips decoding.
// Cached samples are shared between slots; playback never writes to them.
type decodeCache struct {
	samples *cache.Cache
}

// newDecodeCache returns nil when ttl is not positive. Expired entries are
// swept on each store rather than by a janitor goroutine.
func newDecodeCache(ttl time.Duration) *decodeCache {
	if ttl <= 0 {
		return nil
	}
	return &decodeCache{samples: cache.New(ttl, 0)}
}

func decodeKey(path string, info os.FileInfo, sampleRate, channels int) string {
	return fmt.Sprintf("%s|%d|%d|%d|%d", path, info.Size(), info.ModTime().UnixNano(), sampleRate, channels)
}

func (c *decodeCache) get(key string) (*Sample, bool) {
	v, ok := c.samples.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Sample)
	return s, ok
}

func (c *decodeCache) put(key string, s *Sample) {
	c.samples.DeleteExpired()
	c.samples.SetDefault(key, s)
}

// decode returns the sample for path, from the cache when the file has not
// changed since it was last decoded. Worker goroutine only.
func (p *Plugin) decode(path string) (s *Sample, cached bool, err error) {
	if p.cache == nil {
		s, err = LoadSample(path, p.cfg.SampleRate, p.cfg.Channels)
		return s, false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		// LoadSample reports the open failure with full context.
		s, err = LoadSample(path, p.cfg.SampleRate, p.cfg.Channels)
		return s, false, err
	}

	key := decodeKey(path, info, p.cfg.SampleRate, p.cfg.Channels)
	if s, ok := p.cache.get(key); ok {
		return s, true, nil
	}

	s, err = LoadSample(path, p.cfg.SampleRate, p.cfg.Channels)
	if err != nil {
		return nil, false, err
	}
	p.cache.put(key, s)
	return s, false, nil
}
