package probe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRCDefaults(t *testing.T) {
	rc, err := loadRCFrom(nil)
	if err != nil {
		t.Fatalf("loadRCFrom: %v", err)
	}
	if rc.Bridge != "kb2mcp up --quiet" {
		t.Errorf("Bridge = %q", rc.Bridge)
	}
	if rc.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", rc.TimeoutSeconds)
	}
	if rc.Query != "" {
		t.Errorf("Query = %q", rc.Query)
	}
}

func TestLoadRCMergesFiles(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "home.kbproberc")
	local := filepath.Join(dir, "local.kbproberc")
	if err := os.WriteFile(home, []byte("bridge = \"kb2mcp up\"\ntimeout_seconds = 60\nquery = \"from home\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("query = \"from local\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	rc, err := loadRCFrom([]string{home, local})
	if err != nil {
		t.Fatalf("loadRCFrom: %v", err)
	}
	if rc.Bridge != "kb2mcp up" {
		t.Errorf("Bridge = %q, home file should apply", rc.Bridge)
	}
	if rc.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d", rc.TimeoutSeconds)
	}
	if rc.Query != "from local" {
		t.Errorf("Query = %q, local file should win", rc.Query)
	}
}

func TestLoadRCMissingFilesAreFine(t *testing.T) {
	rc, err := loadRCFrom([]string{filepath.Join(t.TempDir(), "absent")})
	if err != nil {
		t.Fatalf("loadRCFrom: %v", err)
	}
	if rc.Bridge == "" {
		t.Error("defaults should survive missing files")
	}
}

func TestLoadRCMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), rcFileName)
	if err := os.WriteFile(path, []byte("bridge = [broken\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := loadRCFrom([]string{path})
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("err = %v, want parse failure", err)
	}
}

func TestLoadRCNonPositiveTimeoutFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), rcFileName)
	if err := os.WriteFile(path, []byte("timeout_seconds = -5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rc, err := loadRCFrom([]string{path})
	if err != nil {
		t.Fatalf("loadRCFrom: %v", err)
	}
	if rc.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want default 30", rc.TimeoutSeconds)
	}
}

func TestContentKindForPath(t *testing.T) {
	cases := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "notes.md", want: "text/markdown"},
		{path: "/tmp/Report.PDF", want: "application/pdf"},
		{path: "notes.txt", wantErr: true},
		{path: "noextension", wantErr: true},
	}
	for _, tc := range cases {
		got, err := contentKindForPath(tc.path)
		if tc.wantErr {
			if err == nil {
				t.Errorf("contentKindForPath(%q) should fail", tc.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("contentKindForPath(%q): %v", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("contentKindForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
