package util

import (
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

// Data is the template rendering context.
type Data map[string]interface{}

// Render executes the given template with the provided variables.
// Missing keys are an error.
func Render(tmpl *template.Template, variables Data) (string, error) {
	var buf strings.Builder
	if err := tmpl.Option("missingkey=error").Execute(&buf, variables); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return buf.String(), nil
}

// RenderString parses and executes the given template string with the provided variables.
func RenderString(tmplStr string, variables Data) (string, error) {
	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template string")
	}
	return Render(tmpl, variables)
}

// IsTemplate reports whether s contains template actions.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// TruncateString shortens s to maxLength, the ellipsis included.
func TruncateString(s string, maxLength int, ellipsis string) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= len(ellipsis) {
		if maxLength < 0 {
			maxLength = 0
		}
		return ellipsis[:maxLength]
	}
	return s[:maxLength-len(ellipsis)] + ellipsis
}

// ShortDur is d.String() without trailing zero units, "1m0s" becomes "1m".
func ShortDur(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
