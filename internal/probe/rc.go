package probe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// RC is the optional .kbproberc file. The home copy loads first, a copy in
// the working directory overrides it.
type RC struct {
	Bridge         string `toml:"bridge"`          // bridge command line to spawn
	TimeoutSeconds int    `toml:"timeout_seconds"` // covers the whole run
	Query          string `toml:"query"`           // default query when none is given
}

const rcFileName = ".kbproberc"

func defaultRC() RC {
	return RC{
		Bridge:         "kb2mcp up --quiet",
		TimeoutSeconds: 30,
	}
}

// loadRC resolves the effective rc from defaults plus any rc files found.
func loadRC() (RC, error) {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, rcFileName))
	}
	paths = append(paths, rcFileName)
	return loadRCFrom(paths)
}

func loadRCFrom(paths []string) (RC, error) {
	rc := defaultRC()
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return rc, err
		}
		if _, err := toml.DecodeFile(path, &rc); err != nil {
			return rc, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if rc.TimeoutSeconds <= 0 {
		rc.TimeoutSeconds = defaultRC().TimeoutSeconds
	}
	return rc, nil
}
