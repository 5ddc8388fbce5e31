package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pellucid-io/beacon/cli/config"
	"github.com/pellucid-io/beacon/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
app_id: my-app
app_build: "2024.1"
server_endpoint: https://telemetry.example.com
upload_enabled: false
log_pings: true
storage:
  backend: file
  path: /tmp/beacon-data
  redis_timeout: 5s
source_tags:
  - automation
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AppID != "my-app" || cfg.AppBuild != "2024.1" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Wants() {
		t.Fatal("Wants() = true with upload_enabled: false")
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Path != "/tmp/beacon-data" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Storage.RedisTimeout.Duration != 5*time.Second {
		t.Fatalf("redis_timeout = %v", cfg.Storage.RedisTimeout.Duration)
	}
}

func TestLoad_UploadEnabledDefaultsToTrue(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "app_id: my-app\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Wants() {
		t.Fatal("Wants() = false with upload_enabled unset")
	}
}

func TestLoad_RequiresAppID(t *testing.T) {
	_, err := config.Load(writeConfig(t, "log_pings: true\n"))
	if err == nil || !strings.Contains(err.Error(), "app_id is required") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("BEACON_TEST_ENDPOINT", "https://staging.example.com")
	cfg, err := config.Load(writeConfig(t, `
app_id: my-app
server_endpoint: ${BEACON_TEST_ENDPOINT}
debug_view_tag: ${BEACON_TEST_TAG:-fallback-tag}
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerEndpoint != "https://staging.example.com" {
		t.Fatalf("ServerEndpoint = %q", cfg.ServerEndpoint)
	}
	if cfg.DebugViewTag != "fallback-tag" {
		t.Fatalf("DebugViewTag = %q", cfg.DebugViewTag)
	}
}

func TestBuild_FileBackendRequiresPath(t *testing.T) {
	cfg := &config.Config{AppID: "my-app", Storage: config.StorageConfig{Backend: "file"}}
	if _, _, err := cfg.Build(log.NewNop()); err == nil {
		t.Fatal("Build accepted a file backend without a path")
	}
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := &config.Config{AppID: "my-app", Storage: config.StorageConfig{Backend: "s3"}}
	if _, _, err := cfg.Build(log.NewNop()); err == nil {
		t.Fatal("Build accepted an unknown backend")
	}
}

func TestBuild_RedisBackend(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := &config.Config{
		AppID: "my-app",
		Storage: config.StorageConfig{
			Backend:  "redis",
			RedisURL: "redis://" + srv.Addr(),
		},
	}
	built, closer, err := cfg.Build(log.NewNop())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer func() { _ = closer() }()
	if built.Platform == nil {
		t.Fatal("redis backend did not bind a platform")
	}
	store, err := built.Platform.OpenStore("probe")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if err := store.Update([]string{"k"}, func(any) any { return "v" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := store.Get("k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %v, %v", got, err)
	}
}
