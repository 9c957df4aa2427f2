package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/salmonumbrella/wikinav/internal/config"
)

func TestConfigSetShowUnset(t *testing.T) {
	cfgPath := writeConfig(t, "")

	for _, args := range [][]string{
		{"config", "set", "backend", "roam"},
		{"config", "set", "allowed_macros", "Image, PageOutline"},
		{"config", "set", "token", "secret-token-value"},
	} {
		run := runCLI(t, "", append([]string{"--config", cfgPath}, args...)...)
		if run.err != nil {
			t.Fatalf("%v: %v", args, run.err)
		}
	}

	loaded, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Backend != "roam" || strings.Join(loaded.AllowedMacros, "|") != "Image|PageOutline" {
		t.Fatalf("unexpected config: %+v", loaded)
	}

	run := runCLI(t, "", "--config", cfgPath, "-o", "json", "config", "show")
	if run.err != nil {
		t.Fatalf("show: %v", run.err)
	}
	var view map[string]string
	if err := json.Unmarshal([]byte(run.out), &view); err != nil {
		t.Fatalf("parse output: %v\n%s", err, run.out)
	}
	if view["backend"] != "roam" || view["token"] != "secr...alue" {
		t.Fatalf("unexpected view: %v", view)
	}
	if _, ok := view["wiki_url"]; !ok {
		t.Fatalf("expected every key in view: %v", view)
	}

	run = runCLI(t, "", "--config", cfgPath, "config", "unset", "backend")
	if run.err != nil {
		t.Fatalf("unset: %v", run.err)
	}
	if loaded, err = config.Load(cfgPath); err != nil || loaded.Backend != "" {
		t.Fatalf("expected backend unset, got %+v (%v)", loaded, err)
	}
}

func TestConfigSetRejectsInvalidValue(t *testing.T) {
	cfgPath := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"config", "set", "backend", "svn"}},
		{"unknown key", []string{"config", "set", "colour", "blue"}},
		{"bad output format", []string{"config", "set", "output_format", "jsonl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := runCLI(t, "", append([]string{"--config", cfgPath, "-o", "text"}, tt.args...)...)
			if run.err == nil {
				t.Fatalf("expected error")
			}
			if !strings.HasPrefix(run.stderr, "Error: ") {
				t.Fatalf("expected text error, got %q", run.stderr)
			}
		})
	}
}

func TestConfigCommandsIgnoreBrokenConfig(t *testing.T) {
	cfgPath := writeConfig(t, "backend: [\n")

	run := runCLI(t, "", "--config", cfgPath, "-o", "text", "config", "path")
	if run.err != nil {
		t.Fatalf("path: %v", run.err)
	}
	if strings.TrimSpace(run.out) != cfgPath {
		t.Fatalf("got %q, want %q", run.out, cfgPath)
	}

	run = runCLI(t, "", "--config", cfgPath, "css")
	if run.err == nil || !strings.Contains(run.err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", run.err)
	}
}

func TestConfigKeys(t *testing.T) {
	run := runCLI(t, "", "--config", writeConfig(t, ""), "-o", "json", "config", "keys")
	if run.err != nil {
		t.Fatalf("keys: %v", run.err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(run.out), &keys); err != nil {
		t.Fatalf("parse output: %v\n%s", err, run.out)
	}
	if strings.Join(keys, ",") != strings.Join(config.Keys(), ",") {
		t.Fatalf("got %v, want %v", keys, config.Keys())
	}
}
