// Package platform bundles the environment-specific pieces the SDK needs:
// where stores live, how pings travel, and what the host looks like.
package platform

import (
	"os"
	"runtime"
	"strings"

	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/storage"
	"github.com/pellucid-io/beacon/upload"
)

// Info describes the host for the client-info ping section.
type Info interface {
	OS() string
	OSVersion() string
	Arch() string
	Locale() string
}

// Platform is the set of environment bindings the SDK is assembled with.
type Platform struct {
	// Name tags the platform in the telemetry agent string ("host", "test").
	Name string
	// OpenStore creates the named durable stores.
	OpenStore storage.Factory
	// Uploader posts collected pings.
	Uploader upload.Uploader
	// Info reports host properties.
	Info Info
}

// hostInfo reads host properties from the Go runtime and the environment.
type hostInfo struct{}

var _ Info = hostInfo{}

func (hostInfo) OS() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "android":
		return "Android"
	default:
		return "Unknown"
	}
}

// OSVersion is not derivable portably from the Go runtime.
func (hostInfo) OSVersion() string { return "Unknown" }

func (hostInfo) Arch() string { return runtime.GOARCH }

// Locale reads LANG, normalized to a BCP 47-ish tag. Falls back to the
// undetermined tag.
func (hostInfo) Locale() string {
	lang := os.Getenv("LANG")
	if lang == "" {
		return "und"
	}
	// "en_US.UTF-8" -> "en-US".
	if i := strings.IndexByte(lang, '.'); i >= 0 {
		lang = lang[:i]
	}
	lang = strings.ReplaceAll(lang, "_", "-")
	if lang == "" || lang == "C" || lang == "POSIX" {
		return "und"
	}
	return lang
}

// Host returns the production platform. Stores persist under dataDir when
// it is non-empty; otherwise everything stays in memory.
func Host(dataDir string, logger *log.Logger) *Platform {
	open := storage.MemoryFactory()
	if dataDir != "" {
		open = storage.FileFactory(dataDir, logger)
	}
	return &Platform{
		Name:      "host",
		OpenStore: open,
		Uploader:  upload.NewHTTPUploader(upload.DefaultUploadTimeout, logger),
		Info:      hostInfo{},
	}
}

// testInfo reports fixed host properties so payloads are deterministic.
type testInfo struct{}

var _ Info = testInfo{}

func (testInfo) OS() string        { return "Unknown" }
func (testInfo) OSVersion() string { return "Unknown" }
func (testInfo) Arch() string      { return "Unknown" }
func (testInfo) Locale() string    { return "und" }

// Test returns a platform with fresh in-memory stores and a scriptable
// stub uploader.
func Test() (*Platform, *upload.StubUploader) {
	uploader := &upload.StubUploader{}
	return &Platform{
		Name:      "test",
		OpenStore: storage.MemoryFactory(),
		Uploader:  uploader,
		Info:      testInfo{},
	}, uploader
}
