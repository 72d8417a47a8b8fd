package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSteps(t *testing.T) {
	cases := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{args: nil, want: 1},
		{args: []string{"3"}, want: 3},
		{args: []string{" 2 "}, want: 2},
		{args: []string{"0"}, wantErr: true},
		{args: []string{"-1"}, wantErr: true},
		{args: []string{"x"}, wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseSteps(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseSteps(%v): expected error", tc.args)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("parseSteps(%v) = %d, %v; want %d", tc.args, got, err, tc.want)
		}
	}
}

func TestParseVersionAndTarget(t *testing.T) {
	if v, err := parseVersion("1760400000"); err != nil || v != 1760400000 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("-1"); err == nil {
		t.Fatalf("expected negative version to fail")
	}
	if _, err := parseVersion("abc"); err == nil {
		t.Fatalf("expected non numeric version to fail")
	}
	if v, err := parseTarget("7"); err != nil || v != 7 {
		t.Fatalf("parseTarget = %d, %v", v, err)
	}
	if _, err := parseTarget("-7"); err == nil {
		t.Fatalf("expected negative target to fail")
	}
}

func TestEnvBool(t *testing.T) {
	for _, raw := range []string{"1", "true", "YES", " on "} {
		t.Setenv("MIGRATION_TEST_FLAG", raw)
		if !envBool("MIGRATION_TEST_FLAG") {
			t.Fatalf("expected %q to be true", raw)
		}
	}
	for _, raw := range []string{"", "0", "off", "nope"} {
		t.Setenv("MIGRATION_TEST_FLAG", raw)
		if envBool("MIGRATION_TEST_FLAG") {
			t.Fatalf("expected %q to be false", raw)
		}
	}
}

func TestResolveMigrationsDir_PrefersEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MIGRATIONS_DIR", dir)

	got, err := resolveMigrationsDir()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want, _ := filepath.Abs(dir)
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveMigrationsDir_SkipsFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MIGRATIONS_DIR", file)
	t.Setenv("MIGRATIONS_PATH", "")

	// Running from cmd/migration, neither fallback directory exists.
	if _, err := resolveMigrationsDir(); err == nil {
		t.Fatalf("expected missing directory error")
	}
}
