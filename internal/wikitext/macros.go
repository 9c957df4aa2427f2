package wikitext

import (
	"strings"

	"github.com/beevik/etree"
)

// DefaultAllowedMacros lists the macros rendered inside TOC entries
// unless the allow-list is overridden.
var DefaultAllowedMacros = []string{"image"}

// MacroArgs are the parsed arguments of a macro call: positional values
// in order and key=value pairs by key.
type MacroArgs struct {
	Positional []string
	Named      map[string]string
}

// Widget renders an allowed macro into parent.
type Widget func(parent *etree.Element, args MacroArgs)

func defaultWidgets() map[string]Widget {
	return map[string]Widget{
		"image": imageWidget,
	}
}

func parseArgs(raw string) MacroArgs {
	args := MacroArgs{Named: map[string]string{}}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if key, value, ok := strings.Cut(part, "="); ok && !strings.ContainsAny(key, ":/") {
			args.Named[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
			continue
		}
		args.Positional = append(args.Positional, part)
	}
	return args
}

// imageWidget renders [[Image(src, alt=..., title=..., width=..., height=...)]].
func imageWidget(parent *etree.Element, args MacroArgs) {
	if len(args.Positional) == 0 {
		parent.CreateText("[[Image]]")
		return
	}
	src := args.Positional[0]
	if unsafeTarget(src) {
		parent.CreateText("[[Image(...)]]")
		return
	}
	img := parent.CreateElement("img")
	img.CreateAttr("src", src)

	alt := args.Named["alt"]
	if alt == "" {
		alt = src[strings.LastIndex(src, "/")+1:]
	}
	img.CreateAttr("alt", alt)
	for _, key := range []string{"title", "width", "height", "class"} {
		if v := args.Named[key]; v != "" {
			img.CreateAttr(key, v)
		}
	}
	for _, p := range args.Positional[1:] {
		if strings.HasSuffix(p, "px") || strings.HasSuffix(p, "%") {
			img.CreateAttr("width", p)
		}
	}
}
