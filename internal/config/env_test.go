package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	unsetEnv(t, "SWEEP_FOO")
	unsetEnv(t, "SWEEP_QUOTED")
	unsetEnv(t, "SWEEP_EXPORTED")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "" +
		"# comment\n" +
		"SWEEP_FOO=bar\n" +
		"SWEEP_QUOTED=\"baz\"\n" +
		"export SWEEP_EXPORTED='qux'\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("SWEEP_FOO"); got != "bar" {
		t.Fatalf("SWEEP_FOO expected bar, got %q", got)
	}
	if got := os.Getenv("SWEEP_QUOTED"); got != "baz" {
		t.Fatalf("SWEEP_QUOTED expected baz, got %q", got)
	}
	if got := os.Getenv("SWEEP_EXPORTED"); got != "qux" {
		t.Fatalf("SWEEP_EXPORTED expected qux, got %q", got)
	}
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	t.Setenv("SWEEP_FOO", "existing")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SWEEP_FOO=bar\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("SWEEP_FOO"); got != "existing" {
		t.Fatalf("SWEEP_FOO expected existing, got %q", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
	creds, err := CredentialsFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.APIKey != "key" || creds.APISecret != "secret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestCredentialsFromEnvMissingKey(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "secret")
	if _, err := CredentialsFromEnv(); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if old, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { _ = os.Setenv(key, old) })
	} else {
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}
	_ = os.Unsetenv(key)
}
