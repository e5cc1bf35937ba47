// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/docbatch/internal/container"
	"github.com/pdiddy/docbatch/pkg/types"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownConverter converts documents by piping them through the
// markitdown container image. It depends on a container.Runtime (docker
// or podman) injected at construction time.
type MarkitdownConverter struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownConverter creates a converter that uses the given container
// runtime to run the markitdown image. It verifies that the image exists
// locally before returning.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt, image: imageMarkitdown}, nil
}

// Convert streams the file into the markitdown container and returns the
// normalized Markdown it prints. The extension is passed as a hint since
// stdin carries no file name.
func (m *MarkitdownConverter) Convert(ctx context.Context, file types.InputFile) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	var args []string
	if ext := strings.TrimPrefix(file.Ext(), "."); ext != "" {
		args = []string{"-x", ext}
	}

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, args, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", file.Name, err)
	}

	text := Normalize(out.String())
	if text == "" {
		return "", fmt.Errorf("markitdown produced empty output for %s", file.Name)
	}
	return text, nil
}
