package config

import (
	"testing"
)

func TestExpandEnv_SetVar(t *testing.T) {
	t.Setenv("BEACON_APP_ID", "my-app")

	got := ExpandEnv("app_id: ${BEACON_APP_ID}")
	want := "app_id: my-app"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_UnsetVar(t *testing.T) {
	got := ExpandEnv("server_endpoint: ${BEACON_UNSET_VAR_12345}")
	want := "server_endpoint: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultUsedWhenUnset(t *testing.T) {
	got := ExpandEnv("debug_view_tag: ${BEACON_UNSET_VAR_12345:-local-run}")
	want := "debug_view_tag: local-run"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultIgnoredWhenSet(t *testing.T) {
	t.Setenv("BEACON_TAG", "staging")

	got := ExpandEnv("debug_view_tag: ${BEACON_TAG:-local-run}")
	want := "debug_view_tag: staging"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultUsedWhenEmpty(t *testing.T) {
	t.Setenv("BEACON_TAG", "")

	got := ExpandEnv("debug_view_tag: ${BEACON_TAG:-local-run}")
	want := "debug_view_tag: local-run"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_MultipleVars(t *testing.T) {
	t.Setenv("BEACON_HOST", "incoming.example.com")
	t.Setenv("BEACON_SCHEME", "https")

	got := ExpandEnv("${BEACON_SCHEME}://${BEACON_HOST}")
	want := "https://incoming.example.com"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_NoVars(t *testing.T) {
	for _, input := range []string{"app_id: my-app", "plain text"} {
		if got := ExpandEnv(input); got != input {
			t.Errorf("got %q, want %q", got, input)
		}
	}
}

func TestExpandEnv_NestedInYAML(t *testing.T) {
	t.Setenv("BEACON_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("BEACON_DATA_DIR", "/var/lib/beacon")

	input := `storage:
  backend: redis
  redis_url: ${BEACON_REDIS_URL}
  path: ${BEACON_DATA_DIR}`

	got := ExpandEnv(input)
	want := `storage:
  backend: redis
  redis_url: redis://cache:6379/2
  path: /var/lib/beacon`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
