package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/wikinav/internal/output"
	"github.com/salmonumbrella/wikinav/internal/store"
)

const sectionTOC = " * [wiki:A Section A]\n" +
	"  * [wiki:A1 Sub A1]\n" +
	"  * [wiki:A2 Sub A2]\n" +
	" * [wiki:B Section B]\n" +
	"  * [wiki:B1 Sub B1]\n"

func TestRenderHTML(t *testing.T) {
	dir := writePages(t, map[string]string{"TOC": sectionTOC})
	cfgPath := writeConfig(t, "")

	run := runCLI(t, "", "--config", cfgPath, "--pages-dir", dir, "render", "--page", "A1")
	if run.err != nil {
		t.Fatalf("execute: %v (stderr %q)", run.err, run.stderr)
	}

	want := `<div class="wiki-toc trac-nav"><h2>Navigation</h2><ul>` +
		`<li><h4><a class="wiki" href="/wiki/A">Section A</a></h4><ul>` +
		`<li class="active"><a class="wiki" href="/wiki/A1">Sub A1</a></li>` +
		`<li><a class="wiki" href="/wiki/A2">Sub A2</a></li>` +
		`</ul></li>` +
		`<li><h4><a class="wiki" href="/wiki/B">Section B</a>...</h4></li>` +
		`</ul></div>` + "\n"
	if run.out != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, run.out)
	}
}

func TestRenderAliasWithMacroArgs(t *testing.T) {
	dir := writePages(t, map[string]string{"TOC": sectionTOC})
	cfgPath := writeConfig(t, "")

	run := runCLI(t, "", "--config", cfgPath, "--pages-dir", dir,
		"jpnav", "--page", "B1", "--macro-args", "TOC|nocollapse|noreorder")
	if run.err != nil {
		t.Fatalf("execute: %v", run.err)
	}
	if !strings.Contains(run.out, "Sub A1") {
		t.Fatalf("expected expanded Section A in %s", run.out)
	}
	if strings.Index(run.out, "Section A") > strings.Index(run.out, "Section B") {
		t.Fatalf("expected Section A to stay first in %s", run.out)
	}
	if !strings.Contains(run.out, `<li class="active"><a class="wiki" href="/wiki/B1">Sub B1</a></li>`) {
		t.Fatalf("expected active B1 in %s", run.out)
	}
}

func TestRenderJSON(t *testing.T) {
	dir := writePages(t, map[string]string{"TOC": sectionTOC, "Guide/TOC": " * [wiki:G Guide]\n"})
	cfgPath := writeConfig(t, "")

	run := runCLI(t, "", "--config", cfgPath, "--pages-dir", dir, "-o", "json", "render", "TOC", "Guide/TOC", "--page", "B")
	if run.err != nil {
		t.Fatalf("execute: %v", run.err)
	}

	var res struct {
		Title   string `json:"title"`
		Current string `json:"current"`
		Blocks  []struct {
			Name      string `json:"name"`
			Matched   bool   `json:"matched"`
			Collapsed bool   `json:"collapsed"`
			Entries   []struct {
				Link string `json:"link"`
			} `json:"entries"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(run.out), &res); err != nil {
		t.Fatalf("parse output: %v\n%s", err, run.out)
	}
	if res.Title != "Navigation" || res.Current != "B" || len(res.Blocks) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	toc, guide := res.Blocks[0], res.Blocks[1]
	if !toc.Matched || !toc.Collapsed || toc.Entries[0].Link != "B" {
		t.Fatalf("expected TOC reordered around B: %+v", toc)
	}
	if guide.Name != "Guide/TOC" || guide.Matched || guide.Collapsed {
		t.Fatalf("expected unmatched Guide/TOC: %+v", guide)
	}
}

func TestRenderEditLink(t *testing.T) {
	dir := writePages(t, map[string]string{"TOC": sectionTOC})
	cfgPath := writeConfig(t, "")
	edit := `<div class="edit"><a href="/wiki/TOC?action=edit">edit</a></div>`

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"editor", []string{"--can-edit"}, true},
		{"reader", nil, false},
		{"noedit flag", []string{"--can-edit", "--noedit"}, false},
		{"noedit macro arg", []string{"--can-edit", "--macro-args", "noedit"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath, "--pages-dir", dir, "render"}, tt.args...)
			run := runCLI(t, "", args...)
			if run.err != nil {
				t.Fatalf("execute: %v", run.err)
			}
			if got := strings.Contains(run.out, edit); got != tt.want {
				t.Fatalf("edit link shown = %v, want %v in %s", got, tt.want, run.out)
			}
		})
	}
}

func TestRenderPreviewUsesUnsavedText(t *testing.T) {
	dir := writePages(t, map[string]string{"TOC": sectionTOC})
	cfgPath := writeConfig(t, "")

	run := runCLI(t, " * [wiki:Draft Draft page]\n",
		"--config", cfgPath, "--pages-dir", dir, "render", "--page", "TOC", "--preview-file", "-", "--can-edit")
	if run.err != nil {
		t.Fatalf("execute: %v", run.err)
	}
	if !strings.Contains(run.out, "Draft page") || strings.Contains(run.out, "Section A") {
		t.Fatalf("expected preview text in %s", run.out)
	}
	if strings.Contains(run.out, "action=edit") {
		t.Fatalf("edit link shown while previewing: %s", run.out)
	}
}

func TestRenderStandaloneAndConfigDefaults(t *testing.T) {
	dir := writePages(t, map[string]string{"Guide/TOC": " * [wiki:Guide/Install Install & run]\n"})
	cfgPath := writeConfig(t, "wiki_url: https://wiki.example.org/wiki/\ntitle: Contents\ndefault_toc: Guide/TOC\n")

	run := runCLI(t, "", "--config", cfgPath, "--pages-dir", dir, "render", "--page", "Guide/Install", "--standalone")
	if run.err != nil {
		t.Fatalf("execute: %v", run.err)
	}
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Contents</title>",
		".trac-nav",
		"<h2>Contents</h2>",
		`<li class="active"><a class="wiki" href="https://wiki.example.org/wiki/Guide/Install">Install &amp; run</a></li>`,
	} {
		if !strings.Contains(run.out, want) {
			t.Fatalf("expected %q in\n%s", want, run.out)
		}
	}
}

func TestRenderMissingTOC(t *testing.T) {
	dir := writePages(t, nil)
	cfgPath := writeConfig(t, "")

	run := runCLI(t, "", "--config", cfgPath, "--pages-dir", dir, "render", "Nope")
	if run.err != nil {
		t.Fatalf("execute: %v", run.err)
	}
	if !strings.Contains(run.out, `TOC &#34;Nope&#34; is empty!`) && !strings.Contains(run.out, `TOC "Nope" is empty!`) {
		t.Fatalf("expected empty TOC notice in %s", run.out)
	}
}

func TestRenderText(t *testing.T) {
	dir := writePages(t, map[string]string{"TOC": sectionTOC})
	cfgPath := writeConfig(t, "")

	run := runCLI(t, "", "--config", cfgPath, "--pages-dir", dir, "-o", "text", "render", "--page", "A2")
	if run.err != nil {
		t.Fatalf("execute: %v", run.err)
	}
	for _, want := range []string{"Navigation", "Section A", "Sub A2", "Section B..."} {
		if !strings.Contains(run.out, want) {
			t.Fatalf("expected %q in\n%s", want, run.out)
		}
	}
}

func TestRenderUnknownBackendErrorEnvelope(t *testing.T) {
	cfgPath := writeConfig(t, "")

	run := runCLI(t, "", "--config", cfgPath, "--backend", "svn", "-o", "json", "render")
	if run.err == nil {
		t.Fatalf("expected error")
	}

	var env errorEnvelope
	if err := json.Unmarshal([]byte(run.stderr), &env); err != nil {
		t.Fatalf("parse stderr: %v\n%s", err, run.stderr)
	}
	if !strings.Contains(env.Error.Message, `unknown backend "svn"`) || env.Error.Type != "error" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWriteRendering(t *testing.T) {
	prev := watchOut
	defer func() { watchOut = prev }()

	watchOut = filepath.Join(t.TempDir(), "nav.html")
	for _, content := range []string{"<ul></ul>\n", "<ul><li>x</li></ul>\n"} {
		if err := writeRendering(rootCmd, []byte(content)); err != nil {
			t.Fatalf("writeRendering: %v", err)
		}
		got, err := os.ReadFile(watchOut)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != content {
			t.Fatalf("got %q, want %q", got, content)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(watchOut))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestRunWatchRendersInitiallyAndOnChange(t *testing.T) {
	restore := snapshotCLIState()
	defer restore()

	dir := writePages(t, map[string]string{"TOC": sectionTOC, "Other": "text"})
	outputType = output.FormatHTML
	pageStore = store.NewDir(dir, "")
	watchFlags = navFlags{page: "A1"}
	watchOut = filepath.Join(t.TempDir(), "nav.html")
	watchDebounce = 20 * time.Millisecond

	cmd := &cobra.Command{}
	inv, err := watchFlags.invocation(cmd, nil)
	if err != nil {
		t.Fatalf("invocation: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cmd, pageStore.(*store.Dir), inv) }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for {
			data, err := os.ReadFile(watchOut)
			if err == nil && strings.Contains(string(data), want) {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("rendering with %q not written, have %q", want, data)
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	waitFor(`<li class="active"><a class="wiki" href="/wiki/A1">Sub A1</a></li>`)

	if err := os.WriteFile(filepath.Join(dir, "TOC.wiki"), []byte(" * [wiki:A1 Renamed]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor("Renamed")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runWatch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runWatch did not stop")
	}
}
