// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/pkg/types"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head><title>Quarterly Update</title><style>body { color: red; }</style></head>
<body>
  <h1>Quarterly Update</h1>
  <p>Revenue   grew
     in <b>every</b> region.</p>
  <h2>Highlights</h2>
  <ul>
    <li>New office</li>
    <li><p>Two hires</p></li>
  </ul>
  <blockquote><p>Best quarter yet.</p></blockquote>
  <pre>go test ./...
ok</pre>
  <script>alert("x")</script>
</body>
</html>`

func TestNativeConverter_Accepts(t *testing.T) {
	n := NewNativeConverter()
	for _, ext := range []string{".txt", ".md", ".markdown", ".csv", ".html", ".htm"} {
		assert.True(t, n.Accepts(ext), ext)
	}
	for _, ext := range []string{".pdf", ".docx", ".png", ""} {
		assert.False(t, n.Accepts(ext), ext)
	}
}

func TestNativeConverter_Text(t *testing.T) {
	n := NewNativeConverter()
	got, err := n.Convert(context.Background(), writeInput(t, "readme.md", "# Readme\r\n\r\n\r\nBody  \r\n"))
	require.NoError(t, err)
	assert.Equal(t, "# Readme\n\nBody\n", got)
}

func TestNativeConverter_HTML(t *testing.T) {
	n := NewNativeConverter()
	got, err := n.Convert(context.Background(), writeInput(t, "update.html", sampleHTML))
	require.NoError(t, err)

	want := strings.Join([]string{
		"# Quarterly Update",
		"",
		"Revenue grew in every region.",
		"",
		"## Highlights",
		"",
		"- New office",
		"- Two hires",
		"",
		"> Best quarter yet.",
		"",
		"```",
		"go test ./...",
		"ok",
		"```",
	}, "\n") + "\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "color")
}

func TestNativeConverter_HTMLTitleOnly(t *testing.T) {
	n := NewNativeConverter()
	got, err := n.Convert(context.Background(), writeInput(t, "t.htm", "<html><head><title>Only Title</title></head><body><div>loose text</div></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "# Only Title\n\nloose text\n", got)
}

func TestNativeConverter_Errors(t *testing.T) {
	n := NewNativeConverter()
	ctx := context.Background()

	tests := []struct {
		name    string
		file    types.InputFile
		wantErr string
	}{
		{"invalid utf8", writeInput(t, "bin.txt", "\xff\xfe\x00garbage"), "not valid UTF-8"},
		{"empty text", writeInput(t, "empty.txt", "  \n\n"), "no text content"},
		{"empty html", writeInput(t, "empty.html", "<html><body></body></html>"), "no text"},
		{"missing file", types.NewInputFile("/nonexistent/file.txt"), "opening"},
		{"unsupported", writeInput(t, "x.pdf", "%PDF"), "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Convert(ctx, tt.file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNativeConverter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNativeConverter().Convert(ctx, writeInput(t, "a.txt", "a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeConverter_SizeLimit(t *testing.T) {
	orig := maxNativeSize
	maxNativeSize = 32
	t.Cleanup(func() { maxNativeSize = orig })

	n := NewNativeConverter()
	ctx := context.Background()

	atLimit := strings.Repeat("a", 31) + "\n"
	got, err := n.Convert(ctx, writeInput(t, "fits.txt", atLimit))
	require.NoError(t, err)
	assert.Equal(t, atLimit, got)

	_, err = n.Convert(ctx, writeInput(t, "big.txt", strings.Repeat("a", 40)+"TAIL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 32 bytes")

	_, err = n.Convert(ctx, writeInput(t, "big.html", "<html><body><p>"+strings.Repeat("b", 40)+"</p></body></html>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 32 bytes")
}

func TestTask_OversizedInputFails(t *testing.T) {
	orig := maxNativeSize
	maxNativeSize = 16
	t.Cleanup(func() { maxNativeSize = orig })

	names, dir := newAllocator(t)
	task := NewTask(NewRouter(NewNativeConverter(), nil), names, "md")

	out := task.Run(context.Background(), writeInput(t, "big.txt", strings.Repeat("x", 64)+"TAIL-MARKER"))
	assert.False(t, out.Succeeded())
	assert.Contains(t, out.Error, "exceeds 16 bytes")
	assert.Empty(t, out.Output)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial output is written")
}
