// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package naming hands out collision-free file names in a shared output
// directory and owns every write into it.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
)

// defaultBase replaces an empty base name.
const defaultBase = "output"

// maxProbes bounds the suffix search for one allocation.
const maxProbes = 100000

var (
	// ErrNamespaceExhausted is returned when no free suffix was found
	// within maxProbes attempts.
	ErrNamespaceExhausted = errors.New("output namespace exhausted")

	// ErrNotClaimed is returned by Write and Release for names the
	// allocator did not hand out.
	ErrNotClaimed = errors.New("name not claimed by allocator")
)

// Allocator reserves unique names in a single directory. Allocate is
// serialized by a mutex and every claim is backed by an exclusively
// created placeholder file, so neither concurrent callers in this process
// nor other processes watching the directory can observe a name as free
// once it has been returned.
type Allocator struct {
	dir string

	mu      sync.Mutex
	claimed map[string]struct{}
}

// New returns an Allocator for dir, creating the directory if needed.
func New(dir string) (*Allocator, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return &Allocator{
		dir:     filepath.Clean(dir),
		claimed: make(map[string]struct{}),
	}, nil
}

// Dir returns the output directory.
func (a *Allocator) Dir() string { return a.dir }

// Candidate returns the n-th name probed for base and ext: base.ext for
// n == 0, base_n.ext afterwards. An empty ext produces no dot.
func Candidate(base, ext string, n int) string {
	if base == "" {
		base = defaultBase
	}
	name := base
	if n > 0 {
		name += "_" + strconv.Itoa(n)
	}
	if ext != "" {
		name += "." + ext
	}
	return name
}

// Allocate returns the first free name among base.ext, base_1.ext,
// base_2.ext, ... and claims it by creating an empty placeholder file.
func (a *Allocator) Allocate(base, ext string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for n := 0; n < maxProbes; n++ {
		name := Candidate(base, ext, n)
		if _, taken := a.claimed[name]; taken {
			continue
		}

		f, err := os.OpenFile(filepath.Join(a.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("claiming %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("claiming %s: %w", name, err)
		}

		a.claimed[name] = struct{}{}
		return name, nil
	}
	return "", fmt.Errorf("%w: no free name for %q after %d attempts", ErrNamespaceExhausted, Candidate(base, ext, 0), maxProbes)
}

// Write stores data under a name previously returned by Allocate. The
// bytes go to a temporary file in the same directory which is synced and
// then renamed over the placeholder, so the final name never exposes a
// partial write.
func (a *Allocator) Write(name string, data []byte) error {
	if !a.owns(name) {
		return fmt.Errorf("writing %s: %w", name, ErrNotClaimed)
	}

	tmp, err := os.CreateTemp(a.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(a.dir, name)); err != nil {
		return fmt.Errorf("renaming into %s: %w", name, err)
	}

	_ = syncDir(a.dir)
	return nil
}

// Release drops a claim and removes its placeholder. It is used when the
// write for a claimed name failed, so no empty file is left behind.
func (a *Allocator) Release(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.claimed[name]; !ok {
		return fmt.Errorf("releasing %s: %w", name, ErrNotClaimed)
	}
	delete(a.claimed, name)

	if err := os.Remove(filepath.Join(a.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing placeholder %s: %w", name, err)
	}
	return nil
}

// Claimed returns the number of names claimed by this allocator.
func (a *Allocator) Claimed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.claimed)
}

func (a *Allocator) owns(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.claimed[name]
	return ok
}

func syncDir(dir string) error {
	// Directory fsync is not supported on Windows.
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
