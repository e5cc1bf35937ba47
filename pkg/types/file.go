// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// InputFile is a source document submitted for conversion. Name is the
// display name and identity; several files in one batch may share a base
// name. Path is where the bytes live on disk.
type InputFile struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// NewInputFile builds an InputFile whose display name is the path itself.
func NewInputFile(path string) InputFile {
	return InputFile{Name: path, Path: path}
}

// Open returns a reader over the file content.
func (f InputFile) Open() (io.ReadCloser, error) {
	r, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	return r, nil
}

// Ext returns the lowercased extension including the dot (".pdf").
func (f InputFile) Ext() string {
	name := f.Path
	if name == "" {
		name = f.Name
	}
	return strings.ToLower(filepath.Ext(name))
}

// BaseName strips any directory and extension from the display name.
// Both slash styles count as separators because names may come from
// browser uploads on another OS.
func (f InputFile) BaseName() string {
	name := f.Name
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
