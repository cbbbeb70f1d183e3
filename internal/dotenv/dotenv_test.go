package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := Load(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("Load missing file error: %v", err)
	}
}

func TestLoadValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# comment\n" +
		"CALLSHIELD_TEST_FROM_FILE=loaded\n" +
		"CALLSHIELD_TEST_QUOTED=\"hello world\"\n" +
		"export CALLSHIELD_TEST_EXPORTED=ok\n" +
		"CALLSHIELD_TEST_EXISTING=from_file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("CALLSHIELD_TEST_FROM_FILE", "")
	os.Unsetenv("CALLSHIELD_TEST_FROM_FILE")
	t.Setenv("CALLSHIELD_TEST_QUOTED", "")
	os.Unsetenv("CALLSHIELD_TEST_QUOTED")
	t.Setenv("CALLSHIELD_TEST_EXPORTED", "")
	os.Unsetenv("CALLSHIELD_TEST_EXPORTED")
	t.Setenv("CALLSHIELD_TEST_EXISTING", "already_set")

	if err := Load(envPath); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := os.Getenv("CALLSHIELD_TEST_FROM_FILE"); got != "loaded" {
		t.Fatalf("FROM_FILE=%q, want %q", got, "loaded")
	}
	if got := os.Getenv("CALLSHIELD_TEST_QUOTED"); got != "hello world" {
		t.Fatalf("QUOTED=%q, want %q", got, "hello world")
	}
	if got := os.Getenv("CALLSHIELD_TEST_EXPORTED"); got != "ok" {
		t.Fatalf("EXPORTED=%q, want %q", got, "ok")
	}
	if got := os.Getenv("CALLSHIELD_TEST_EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING=%q, want existing value preserved", got)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		key  string
		val  string
		ok   bool
	}{
		{line: "KEY=value", key: "KEY", val: "value", ok: true},
		{line: "  KEY = spaced  ", key: "KEY", val: "spaced", ok: true},
		{line: "export KEY=value", key: "KEY", val: "value", ok: true},
		{line: "KEY='single'", key: "KEY", val: "single", ok: true},
		{line: "KEY=", key: "KEY", val: "", ok: true},
		{line: "# comment", ok: false},
		{line: "", ok: false},
		{line: "=novalue", ok: false},
		{line: "noequals", ok: false},
	}
	for _, tt := range tests {
		key, val, ok := parseLine(tt.line)
		if key != tt.key || val != tt.val || ok != tt.ok {
			t.Errorf("parseLine(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.line, key, val, ok, tt.key, tt.val, tt.ok)
		}
	}
}
