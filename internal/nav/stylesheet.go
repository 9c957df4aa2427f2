package nav

import (
	_ "embed"
	"strings"
)

//go:embed nav.css
var stylesheet string

// Stylesheet returns the CSS that styles the navigation bar markup.
func Stylesheet() string {
	return stylesheet
}

// Document wraps a rendered navigation bar in a complete XHTML page with
// the stylesheet inlined.
func Document(title, body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\"/>\n<title>")
	sb.WriteString(escapeText(title))
	sb.WriteString("</title>\n<style>\n")
	sb.WriteString(stylesheet)
	sb.WriteString("</style>\n</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
