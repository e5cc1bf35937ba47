// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/pkg/types"
)

// fakeConverter implements Converter for testing. It returns canned
// Markdown or an error, depending on configuration.
type fakeConverter struct {
	output string
	err    error
	calls  int
}

func (f *fakeConverter) Convert(_ context.Context, _ types.InputFile) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// writeInput creates a source file in a temp dir and returns it.
func writeInput(t *testing.T, name, content string) types.InputFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return types.NewInputFile(path)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \n\t\n", ""},
		{"adds trailing newline", "# Title", "# Title\n"},
		{"crlf", "a\r\nb\r\n", "a\nb\n"},
		{"trailing spaces", "a  \nb\t\n", "a\nb\n"},
		{"collapses blank runs", "a\n\n\n\nb", "a\n\nb\n"},
		{"strips bom", "\ufeffhello", "hello\n"},
		{"trims leading blank lines", "\n\n# T\n", "# T\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRouter(t *testing.T) {
	ctx := context.Background()

	t.Run("native extension stays native", func(t *testing.T) {
		backend := &fakeConverter{output: "from backend\n"}
		r := NewRouter(NewNativeConverter(), backend)

		got, err := r.Convert(ctx, writeInput(t, "notes.txt", "plain notes"))
		require.NoError(t, err)
		assert.Equal(t, "plain notes\n", got)
		assert.Zero(t, backend.calls)
	})

	t.Run("other extensions use backend", func(t *testing.T) {
		backend := &fakeConverter{output: "from backend\n"}
		r := NewRouter(nil, backend)

		got, err := r.Convert(ctx, writeInput(t, "paper.pdf", "%PDF"))
		require.NoError(t, err)
		assert.Equal(t, "from backend\n", got)
		assert.Equal(t, 1, backend.calls)
	})

	t.Run("no backend rejects unknown types", func(t *testing.T) {
		r := NewRouter(nil, nil)
		_, err := r.Convert(ctx, writeInput(t, "slides.pptx", "zip"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupported))
		assert.Contains(t, err.Error(), ".pptx")
	})
}
