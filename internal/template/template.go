// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

// Package template defines the rendering collaborator consumed by the
// scheduler. A full engine with nested helpers is an external concern;
// this package carries the contract plus a minimal renderer covering
// variable substitution and flat conditionals, enough for the bundled
// default templates to work out of the box.
package template

import (
	"strings"
)

// Renderer turns a template string and a context map into display text.
type Renderer interface {
	Render(tmpl string, ctx map[string]string) (string, error)
}

// Simple expands {{key}} and {{{key}}} placeholders and flat
// {{#if key}}...{{else}}...{{/if}} blocks. Absent keys expand to
// nothing; block helpers cannot nest.
type Simple struct{}

// NewSimple returns the built-in renderer.
func NewSimple() *Simple { return &Simple{} }

// Render never fails; malformed syntax is passed through untouched.
func (s *Simple) Render(tmpl string, ctx map[string]string) (string, error) {
	return strings.TrimSpace(substitute(conditionals(tmpl, ctx), ctx)), nil
}

// conditionals resolves every flat if-block against the context.
func conditionals(tmpl string, ctx map[string]string) string {
	for {
		start := strings.Index(tmpl, "{{#if ")
		if start < 0 {
			return tmpl
		}
		headEnd := strings.Index(tmpl[start:], "}}")
		if headEnd < 0 {
			return tmpl
		}
		headEnd += start

		// The condition key may carry engine options; only the first
		// token selects the context field.
		head := tmpl[start+len("{{#if ") : headEnd]
		key := strings.Fields(head)[0]

		blockEnd := strings.Index(tmpl[headEnd:], "{{/if}}")
		if blockEnd < 0 {
			return tmpl
		}
		blockEnd += headEnd

		body := tmpl[headEnd+2 : blockEnd]
		thenPart, elsePart, _ := strings.Cut(body, "{{else}}")

		chosen := elsePart
		if ctx[key] != "" {
			chosen = thenPart
		}
		tmpl = tmpl[:start] + chosen + tmpl[blockEnd+len("{{/if}}"):]
	}
}

// substitute expands {{key}} and {{{key}}} placeholders.
func substitute(tmpl string, ctx map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		rest = rest[start:]

		braces := 2
		if strings.HasPrefix(rest, "{{{") {
			braces = 3
		}
		closer := strings.Repeat("}", braces)
		end := strings.Index(rest[braces:], closer)
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += braces

		key := strings.TrimSpace(rest[braces:end])
		if val, ok := ctx[key]; ok {
			b.WriteString(val)
		}
		rest = rest[end+braces:]
	}

	return b.String()
}
