package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vango-dev/querysync/internal/config"
	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeStarter(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	if err := starterConfig().SaveTo(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "init", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("starter config is invalid: %v", err)
	}

	_, err = run(t, "init", dir)
	if errors.CodeOf(err) != "Q040" {
		t.Errorf("second init: code = %q, want Q040", errors.CodeOf(err))
	}
	if _, err := run(t, "init", dir, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	if _, err := run(t, "init", dir, "--yaml"); err != nil {
		t.Fatalf("init --yaml: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "querysync.yaml")); err != nil {
		t.Error("querysync.yaml not written")
	}
}

func TestRead(t *testing.T) {
	path := writeStarter(t)

	out, err := run(t, "read", "--config", path, "/items?sort=old&tags=a&tags=b")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var res urlsync.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.URL != "/items?page=1&sort=old&tags=a&tags=b" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Values["sort"] != "new" {
		t.Errorf("sort = %v, want the default", res.Values["sort"])
	}
	if len(res.Errors) != 1 || res.Errors[0].Key != "sort" {
		t.Errorf("Errors = %+v", res.Errors)
	}
}

func TestReadText(t *testing.T) {
	path := writeStarter(t)

	out, err := run(t, "read", "-c", path, "-o", "text", "/?page=3")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{"url: /?page=3&sort=new", "page", "3", "(absent)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "read", "-c", path, "-o", "xml", "/"); errors.CodeOf(err) != "Q040" {
		t.Errorf("unknown format: code = %q", errors.CodeOf(err))
	}
}

func TestPatch(t *testing.T) {
	path := writeStarter(t)

	tests := []struct {
		name string
		args []string
		url  string
	}{
		{"scalar", []string{"/?page=2", "page=5"}, "/?page=5&sort=new"},
		{"list", []string{"/", "tags=go", "tags=web"}, "/?page=1&sort=new&tags=go&tags=web"},
		{"unset", []string{"/?q=shoes", "--unset", "q"}, "/?page=1&sort=new"},
		{"json", []string{"/", "--json", `{"page": 4, "tags": ["a"]}`}, "/?page=4&sort=new&tags=a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"patch", "-c", path}, tt.args...)
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("patch: %v", err)
			}
			var res urlsync.Result
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out)
			}
			if res.URL != tt.url {
				t.Errorf("URL = %q, want %q", res.URL, tt.url)
			}
		})
	}
}

func TestPatchMode(t *testing.T) {
	path := writeStarter(t)

	out, err := run(t, "patch", "-c", path, "--mode", "replace", "/?page=1&sort=new", "page=2")
	if err != nil {
		t.Fatal(err)
	}
	var res urlsync.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Entries != 1 {
		t.Errorf("Entries = %d, want 1 with replace", res.Entries)
	}
}

func TestPatchErrors(t *testing.T) {
	path := writeStarter(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"not a pair", []string{"/", "page"}, "Q040"},
		{"unknown key", []string{"/", "color=red"}, "Q010"},
		{"bad number", []string{"/", "page=many"}, "Q001"},
		{"bad unset", []string{"/", "--unset", "color"}, "Q010"},
		{"bad json", []string{"/", "--json", "{"}, "Q040"},
		{"bad mode", []string{"/", "page=2", "--mode", "sideways"}, "Q013"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"patch", "-c", path}, tt.args...)
			_, err := run(t, args...)
			if errors.CodeOf(err) != tt.code {
				t.Errorf("code = %q (%v), want %s", errors.CodeOf(err), err, tt.code)
			}
		})
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "read", "-c", filepath.Join(t.TempDir(), "nope.json"), "/")
	if errors.CodeOf(err) != "Q020" {
		t.Errorf("code = %q, want Q020", errors.CodeOf(err))
	}
}

func TestLogLevel(t *testing.T) {
	if _, err := run(t, "version", "--log-level", "loud"); errors.CodeOf(err) != "Q040" {
		t.Errorf("code = %q, want Q040", errors.CodeOf(err))
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version --short = %q", out)
	}

	out, _ = run(t, "version")
	if !strings.Contains(out, "Go version:") {
		t.Errorf("version output:\n%s", out)
	}
}
