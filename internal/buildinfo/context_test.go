package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danfengzi/obs-lv2/internal/privacy"
)

var _ BuildInfo = (*Context)(nil)

func TestNew(t *testing.T) {
	t.Parallel()

	c := New("1.2.3", "2026-10-01")
	assert.Equal(t, "1.2.3", c.GetVersion())
	assert.Equal(t, "2026-10-01", c.GetBuildDate())
	assert.True(t, privacy.IsValidSystemID(c.GetSystemID()))
}

func TestUnknownValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		ctx  *Context
	}{
		{name: "nil", ctx: nil},
		{name: "empty", ctx: &Context{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, "unknown", tc.ctx.GetVersion())
			assert.Equal(t, "unknown", tc.ctx.GetBuildDate())
			assert.Equal(t, "unknown", tc.ctx.GetSystemID())
		})
	}
}
