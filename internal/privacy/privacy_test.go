package privacy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		message     string
		contains    []string
		notContains []string
	}{
		{
			name:        "home path",
			message:     "open /home/alice/samples/kick.wav: no such file",
			contains:    []string{"/home/[USER]/samples/kick.wav"},
			notContains: []string{"alice"},
		},
		{
			name:        "macOS home path",
			message:     "decode /Users/bob/snare.flac failed",
			contains:    []string{"/Users/[USER]/snare.flac"},
			notContains: []string{"bob"},
		},
		{
			name:        "url",
			message:     "post https://user:pw@sentry.example.com/api/1?x=y failed",
			contains:    []string{"url-"},
			notContains: []string{"user:pw", "sentry.example.com"},
		},
		{
			name:        "secret",
			message:     "bad config dsn=https://abc@o1.ingest token: s3cr3t",
			contains:    []string{"dsn=[REDACTED]", "token:[REDACTED]"},
			notContains: []string{"s3cr3t", "abc@"},
		},
		{
			name:     "clean",
			message:  "worker: timed out waiting for worker to stop",
			contains: []string{"worker: timed out waiting for worker to stop"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ScrubMessage(tc.message)
			for _, want := range tc.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tc.notContains {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestAnonymizeURLIsStable(t *testing.T) {
	t.Parallel()

	a := AnonymizeURL("http://192.168.1.10:8090/metrics")
	b := AnonymizeURL("http://192.168.1.20:8090/metrics")
	c := AnonymizeURL("http://example.org:8090/metrics")

	assert.Equal(t, a, b, "private hosts share a category")
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "url-"))
}

func TestCategorizeHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "localhost", categorizeHost("127.0.0.1"))
	assert.Equal(t, "private-ip", categorizeHost("10.0.0.5"))
	assert.Equal(t, "public-ip", categorizeHost("8.8.8.8"))
	assert.Equal(t, "domain-org", categorizeHost("example.org"))
	assert.Equal(t, "unknown-host", categorizeHost("printer"))
}

func TestSystemID(t *testing.T) {
	t.Parallel()

	id, err := GenerateSystemID()
	require.NoError(t, err)
	assert.True(t, IsValidSystemID(id), id)

	assert.False(t, IsValidSystemID("ABCD-EFGH-1234"))
	assert.False(t, IsValidSystemID("ABCD1EF01-1234"))
	assert.False(t, IsValidSystemID("short"))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapError(nil))

	base := errors.New("open /home/carol/loop.wav: permission denied")
	wrapped := WrapError(base)
	require.Error(t, wrapped)
	assert.NotContains(t, wrapped.Error(), "carol")
	assert.ErrorIs(t, wrapped, base)
}
