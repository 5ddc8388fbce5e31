package beacon

import (
	"testing"

	"github.com/pellucid-io/beacon/types"
)

func TestSanitizeApplicationID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my-app", "my-app"},
		{"My App", "my-app"},
		{"org.example.App", "org-example-app"},
		{"weird__id!!2000", "weird-id-2000"},
		{"  spaced  ", "spaced"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := sanitizeApplicationID(tt.in); got != tt.want {
			t.Errorf("sanitizeApplicationID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig_NormalizeEndpoint(t *testing.T) {
	var cfg Config
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if cfg.ServerEndpoint != types.DefaultTelemetryEndpoint {
		t.Fatalf("ServerEndpoint = %q", cfg.ServerEndpoint)
	}

	cfg = Config{ServerEndpoint: "https://telemetry.example.com/"}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if cfg.ServerEndpoint != "https://telemetry.example.com" {
		t.Fatalf("trailing slash kept: %q", cfg.ServerEndpoint)
	}

	for _, endpoint := range []string{"ftp://example.com", "telemetry.example.com", "https://"} {
		cfg = Config{ServerEndpoint: endpoint}
		if err := cfg.normalize(); err == nil {
			t.Errorf("normalize accepted %q", endpoint)
		}
	}
}

func TestValidateDebugViewTag(t *testing.T) {
	for _, tag := range []string{"my-tag", "Tag-2000", "x"} {
		if !ValidateDebugViewTag(tag) {
			t.Errorf("ValidateDebugViewTag(%q) = false", tag)
		}
	}
	for _, tag := range []string{"", "has space", "way-way-way-too-long-tag", "under_score"} {
		if ValidateDebugViewTag(tag) {
			t.Errorf("ValidateDebugViewTag(%q) = true", tag)
		}
	}
}

func TestValidateSourceTags(t *testing.T) {
	if !ValidateSourceTags([]string{"automation", "ci"}) {
		t.Fatal("valid tags rejected")
	}
	if ValidateSourceTags(nil) {
		t.Fatal("empty tag set accepted")
	}
	if ValidateSourceTags([]string{"a", "b", "c", "d", "e", "f"}) {
		t.Fatal("oversized tag set accepted")
	}
	if ValidateSourceTags([]string{"glean-internal"}) {
		t.Fatal("reserved prefix accepted")
	}
	if ValidateSourceTags([]string{"has space"}) {
		t.Fatal("malformed tag accepted")
	}
}
