package cli

import (
	"testing"
)

func TestRootRegistersCommands(t *testing.T) {
	want := map[string]bool{
		"up":      false,
		"ask":     false,
		"status":  false,
		"config":  false,
		"version": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestBaseOverridesFromGlobalFlags(t *testing.T) {
	saved := globalFlags
	defer func() { globalFlags = saved }()

	globalFlags = GlobalFlags{}
	o := baseOverrides()
	if o.BackendURL != nil || o.LogLevel != nil || o.StateDir != nil {
		t.Errorf("unset flags must stay nil, got %#v", o)
	}

	globalFlags = GlobalFlags{
		BackendURL: "http://kb.internal:8080",
		LogLevel:   "debug",
		StateDir:   "/var/lib/kb2mcp",
	}
	o = baseOverrides()
	if o.BackendURL == nil || *o.BackendURL != "http://kb.internal:8080" {
		t.Errorf("BackendURL override = %v", o.BackendURL)
	}
	if o.LogLevel == nil || *o.LogLevel != "debug" {
		t.Errorf("LogLevel override = %v", o.LogLevel)
	}
	if o.StateDir == nil || *o.StateDir != "/var/lib/kb2mcp" {
		t.Errorf("StateDir override = %v", o.StateDir)
	}
}
