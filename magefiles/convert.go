//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts everything in inbox/ into documents/.
func Convert() error {
	mg.Deps(Init, Build)
	fmt.Println("[convert] inbox/ -> documents/")
	return sh.RunV(filepath.Join(binDir, binName), "convert", "--output-dir", "documents", "inbox")
}
