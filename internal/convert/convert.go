// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns source documents into normalized Markdown text
// and wraps one conversion plus its output write into a Task.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrUnsupported is returned for file types no configured backend handles.
var ErrUnsupported = errors.New("unsupported file type")

// Converter transforms a source document into Markdown text. Backends
// (native, markitdown, docling) implement this interface. Implementations
// must be safe for concurrent use.
type Converter interface {
	Convert(ctx context.Context, file types.InputFile) (string, error)
}

// Router sends native formats to the native converter and everything else
// to the configured backend.
type Router struct {
	native   *NativeConverter
	fallback Converter
}

// NewRouter builds a Router. fallback may be nil, in which case only
// native formats are accepted.
func NewRouter(native *NativeConverter, fallback Converter) *Router {
	if native == nil {
		native = NewNativeConverter()
	}
	return &Router{native: native, fallback: fallback}
}

// Convert dispatches on the file extension.
func (r *Router) Convert(ctx context.Context, file types.InputFile) (string, error) {
	if r.native.Accepts(file.Ext()) {
		return r.native.Convert(ctx, file)
	}
	if r.fallback == nil {
		return "", fmt.Errorf("%w %q (no conversion backend configured)", ErrUnsupported, file.Ext())
	}
	return r.fallback.Convert(ctx, file)
}

// Normalize converts line endings to LF, strips trailing whitespace from
// every line, collapses runs of more than one blank line and ends the
// text with exactly one newline.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	result := strings.Trim(strings.Join(out, "\n"), "\n")
	if result == "" {
		return ""
	}
	return result + "\n"
}
