// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/docbatch/pkg/types"
)

// maxNativeSize caps how much of a file is read into memory. Larger
// files fail rather than convert partially.
var maxNativeSize int64 = 64 << 20

var textExts = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".log":      true,
}

var htmlExts = map[string]bool{
	".html": true,
	".htm":  true,
}

// NativeConverter handles plain text and HTML in-process.
type NativeConverter struct{}

// NewNativeConverter returns a NativeConverter.
func NewNativeConverter() *NativeConverter {
	return &NativeConverter{}
}

// Accepts reports whether ext (lowercase, with dot) is handled natively.
func (n *NativeConverter) Accepts(ext string) bool {
	return textExts[ext] || htmlExts[ext]
}

// Convert reads the file and returns normalized Markdown.
func (n *NativeConverter) Convert(ctx context.Context, file types.InputFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := file.Ext()
	if !n.Accepts(ext) {
		return "", fmt.Errorf("%w %q", ErrUnsupported, ext)
	}

	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxNativeSize+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file.Name, err)
	}
	if int64(len(data)) > maxNativeSize {
		return "", fmt.Errorf("%s exceeds %d bytes", file.Name, maxNativeSize)
	}

	var text string
	if htmlExts[ext] {
		text, err = htmlToMarkdown(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parsing HTML %s: %w", file.Name, err)
		}
	} else {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid UTF-8 text", file.Name)
		}
		text = string(data)
	}

	text = Normalize(text)
	if text == "" {
		return "", fmt.Errorf("%s has no text content", file.Name)
	}
	return text, nil
}

const blockSelector = "h1,h2,h3,h4,h5,h6,p,li,pre,blockquote"

// htmlToMarkdown extracts headings, paragraphs, list items, quotes and
// preformatted blocks from an HTML document in document order.
func htmlToMarkdown(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script,style,noscript,template").Remove()

	var blocks []string
	title := collapseSpace(doc.Find("head title").First().Text())

	doc.Find("body").Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted through their outermost ancestor.
		if s.ParentsFiltered("li,pre,blockquote,p").Length() > 0 {
			return
		}

		tag := goquery.NodeName(s)
		if tag == "pre" {
			code := strings.Trim(s.Text(), "\n")
			if code != "" {
				blocks = append(blocks, "```\n"+code+"\n```")
			}
			return
		}

		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(tag[1] - '0')
			blocks = append(blocks, strings.Repeat("#", level)+" "+text)
		case "li":
			blocks = append(blocks, "- "+text)
		case "blockquote":
			blocks = append(blocks, "> "+text)
		default:
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		if body := collapseSpace(doc.Find("body").Text()); body != "" {
			blocks = append(blocks, body)
		}
	}
	if title != "" && (len(blocks) == 0 || strings.TrimLeft(blocks[0], "# ") != title) {
		blocks = append([]string{"# " + title}, blocks...)
	}
	if len(blocks) == 0 {
		return "", errors.New("document has no text")
	}

	return joinBlocks(blocks), nil
}

// joinBlocks separates blocks by blank lines, keeping consecutive list
// items together.
func joinBlocks(blocks []string) string {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			if strings.HasPrefix(block, "- ") && strings.HasPrefix(blocks[i-1], "- ") {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(block)
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
