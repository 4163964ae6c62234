// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import "github.com/danfengzi/obs-lv2/internal/privacy"

const unknown = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	// GetVersion returns the build version string
	GetVersion() string
	// GetBuildDate returns the build date string
	GetBuildDate() string
	// GetSystemID returns the per-process identifier used in telemetry
	GetSystemID() string
}

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup and never written to config.yaml.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// SystemID is an anonymous identifier for telemetry
	SystemID string
}

// New returns a Context for version and buildDate with a fresh system ID.
func New(version, buildDate string) *Context {
	id, err := privacy.GenerateSystemID()
	if err != nil {
		id = ""
	}
	return &Context{Version: version, BuildDate: buildDate, SystemID: id}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// GetSystemID implements BuildInfo.GetSystemID
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return unknown
	}
	return c.SystemID
}
