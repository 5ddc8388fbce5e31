package beacon

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/platform"
	"github.com/pellucid-io/beacon/types"
)

// Config tunes an SDK instance. The zero value is usable: pings go to the
// default endpoint and stores stay in memory.
type Config struct {
	// AppBuild and AppDisplayVersion fill the ping client_info section.
	AppBuild          string
	AppDisplayVersion string

	// ServerEndpoint receives submitted pings. Must be an http(s) origin.
	// Defaults to the public telemetry endpoint.
	ServerEndpoint string

	// StoragePath persists stores on disk when set. Empty keeps everything
	// in memory.
	StoragePath string

	// MaxEvents is reserved for event-batch flushing; zero keeps events
	// until the ping they belong to is submitted.
	MaxEvents int

	// LogPings pretty-prints collected payloads.
	LogPings bool
	// DebugViewTag routes pings to the debug view. See ValidateDebugViewTag.
	DebugViewTag string
	// SourceTags annotate pings in the pipeline. See ValidateSourceTags.
	SourceTags []string

	// Platform overrides the environment bindings. Tests inject the stub
	// platform here.
	Platform *platform.Platform

	// Logger overrides the default component logger.
	Logger *log.Logger
}

// tagRegex bounds debug tags to what the pipeline accepts.
var tagRegex = regexp.MustCompile(`^[a-zA-Z0-9-]{1,20}$`)

// ValidateDebugViewTag reports whether tag can be sent as X-Debug-ID.
func ValidateDebugViewTag(tag string) bool {
	return tagRegex.MatchString(tag)
}

// ValidateSourceTags reports whether tags can be sent as X-Source-Tags:
// between 1 and 5 tags, each matching the tag pattern, none reserved.
func ValidateSourceTags(tags []string) bool {
	if len(tags) == 0 || len(tags) > types.MaxSourceTags {
		return false
	}
	for _, tag := range tags {
		if !tagRegex.MatchString(tag) {
			return false
		}
		if strings.HasPrefix(tag, "glean") {
			return false
		}
	}
	return true
}

// normalize validates the config and fills defaults in place.
func (c *Config) normalize() error {
	if c.ServerEndpoint == "" {
		c.ServerEndpoint = types.DefaultTelemetryEndpoint
	}
	u, err := url.Parse(c.ServerEndpoint)
	if err != nil {
		return fmt.Errorf("invalid server endpoint %q: %w", c.ServerEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server endpoint %q: scheme must be http or https", c.ServerEndpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server endpoint %q: missing host", c.ServerEndpoint)
	}
	c.ServerEndpoint = strings.TrimRight(c.ServerEndpoint, "/")

	if c.DebugViewTag != "" && !ValidateDebugViewTag(c.DebugViewTag) {
		return fmt.Errorf("invalid debug view tag %q", c.DebugViewTag)
	}
	if len(c.SourceTags) > 0 && !ValidateSourceTags(c.SourceTags) {
		return fmt.Errorf("invalid source tags %v", c.SourceTags)
	}
	return nil
}

// sanitizeApplicationID lowercases the application identifier and folds
// every run of non-alphanumerics into a single dash.
func sanitizeApplicationID(appID string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(appID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
