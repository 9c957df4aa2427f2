package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/salmonumbrella/wikinav/internal/api"
	"github.com/salmonumbrella/wikinav/internal/output"
	"github.com/salmonumbrella/wikinav/internal/secrets"
)

func validateErrorFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "auto", "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("invalid --error-format %q (expected auto|text|json|yaml)", format)
	}
}

func effectiveErrorFormat(ctx context.Context) string {
	format := strings.ToLower(strings.TrimSpace(ErrorFormatFromContext(ctx)))
	if format != "" && format != "auto" {
		return format
	}
	if ctx == nil {
		return "text"
	}
	switch output.FormatFromContext(ctx) {
	case output.FormatJSON, output.FormatNDJSON:
		return "json"
	case output.FormatYAML:
		return "yaml"
	default:
		return "text"
	}
}

func printCommandError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	w := stderrFromContext(ctx)
	switch effectiveErrorFormat(ctx) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(buildErrorEnvelope(err))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		_ = enc.Encode(buildErrorEnvelope(err))
		_ = enc.Close()
	default:
		_, _ = fmt.Fprintln(w, "Error:", err)
	}
}

// errorDetail is the "error" object of the envelope.
type errorDetail struct {
	Message  string `json:"message" yaml:"message"`
	Type     string `json:"type" yaml:"type"`
	Category string `json:"category" yaml:"category"`
	Subtype  string `json:"subtype,omitempty" yaml:"subtype,omitempty"`
}

type errorEnvelope struct {
	Error errorDetail `json:"error" yaml:"error"`
}

// errorKinds maps error types to their envelope type and category. The
// first match wins.
var errorKinds = []struct {
	typ      string
	category string
	match    func(error) bool
}{
	{"auth", "user", func(err error) bool { var e api.AuthenticationError; return errors.As(err, &e) }},
	{"validation", "user", func(err error) bool { var e api.ValidationError; return errors.As(err, &e) }},
	{"not_found", "user", func(err error) bool { var e api.NotFoundError; return errors.As(err, &e) }},
	{"rate_limit", "system", func(err error) bool { var e api.RateLimitError; return errors.As(err, &e) }},
	{"desktop_not_running", "user", func(err error) bool { var e api.DesktopNotRunningError; return errors.As(err, &e) }},
	{"local_api", "system", func(err error) bool { var e api.LocalAPIError; return errors.As(err, &e) }},
	{"credentials", "user", func(err error) bool { return errors.Is(err, secrets.ErrNotFound) }},
}

func buildErrorEnvelope(err error) errorEnvelope {
	detail := errorDetail{Message: err.Error(), Type: "error", Category: "system"}
	for _, k := range errorKinds {
		if k.match(err) {
			detail.Type = k.typ
			detail.Category = k.category
			break
		}
	}

	var localErr api.LocalAPIError
	if errors.As(err, &localErr) && localErr.IsResponseTimeout() {
		detail.Subtype = "response_timeout"
	}
	return errorEnvelope{Error: detail}
}
