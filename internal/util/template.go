package util

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}

		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"pct": func(v float64) string {
		return fmt.Sprintf("%.0f%%", v*100)
	},
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
}

var cache sync.Map // template text -> *template.Template

// RenderTemplate replaces template variables using Go's text/template package.
// Parsed templates are cached by their text.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func parse(text string) (*template.Template, error) {
	if t, ok := cache.Load(text); ok {
		return t.(*template.Template), nil
	}

	t, err := template.New("reasoning").Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, err
	}

	cache.Store(text, t)

	return t, nil
}
