package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/facts"
)

// ErrRepoTooLarge is returned when the repository exceeds the configured size
// limit and no override was given.
var ErrRepoTooLarge = errors.New("repository exceeds size limit")

// File is one entry of the repository listing.
type File struct {
	Path    string    // slash-separated, relative to the root
	Size    int64     // bytes
	ModTime time.Time
}

// Source is the repository file-listing and read interface consumed by the analyzers.
type Source interface {
	Root() string
	Files() []File
	ReadFile(path string) ([]byte, error)
}

// Options bound what Build includes.
type Options struct {
	Ignore       []string
	MaxFileSize  int64 // bytes; 0 = unlimited
	MaxRepoSize  int64 // bytes; 0 = unlimited
	AllowLarge   bool
	CacheEntries int
}

// Snapshot is an immutable listing of repository files with a cached reader.
// It is safe for concurrent use.
type Snapshot struct {
	root      string
	files     []File
	index     map[string]int
	memory    map[string][]byte
	warnings  []facts.Warning
	totalSize int64
	cache     *lru.Cache[string, []byte]
}

// Build walks root and returns a snapshot of the files not ignored.
// Files larger than MaxFileSize are skipped with a warning.
func Build(ctx context.Context, root string, opts Options) (*Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("accessing %s: not a directory", root)
	}

	s := newSnapshot(root, opts.CacheEntries)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.warnings = append(s.warnings, facts.Warning{Phase: "discovery", File: path, Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		// Skip ignored paths
		if IsIgnored(relPath, opts.Ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			s.warnings = append(s.warnings, facts.Warning{Phase: "discovery", File: relPath, Message: err.Error()})
			return nil
		}
		if opts.MaxFileSize > 0 && fi.Size() > opts.MaxFileSize {
			s.warnings = append(s.warnings, facts.Warning{
				Phase:   "discovery",
				File:    relPath,
				Message: fmt.Sprintf("skipped: %d bytes exceeds per-file limit of %d", fi.Size(), opts.MaxFileSize),
			})
			return nil
		}

		s.add(File{Path: relPath, Size: fi.Size(), ModTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	if opts.MaxRepoSize > 0 && s.totalSize > opts.MaxRepoSize {
		if !opts.AllowLarge {
			return nil, fmt.Errorf("%w: %d bytes > %d", ErrRepoTooLarge, s.totalSize, opts.MaxRepoSize)
		}
		klog.Warningf("[snapshot] repository size %d exceeds limit %d, continuing with override", s.totalSize, opts.MaxRepoSize)
	}

	klog.V(2).Infof("[snapshot] %d files (%d bytes) under %s, %d skipped", len(s.files), s.totalSize, root, len(s.warnings))
	return s, nil
}

// NewMemory builds a snapshot from in-memory contents keyed by slash path.
func NewMemory(files map[string]string) *Snapshot {
	s := newSnapshot("", 0)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		s.memory[p] = []byte(files[p])
		s.add(File{Path: p, Size: int64(len(files[p]))})
	}
	return s
}

func newSnapshot(root string, cacheEntries int) *Snapshot {
	if cacheEntries <= 0 {
		cacheEntries = 512
	}
	cache, _ := lru.New[string, []byte](cacheEntries)
	return &Snapshot{
		root:   root,
		index:  make(map[string]int),
		memory: make(map[string][]byte),
		cache:  cache,
	}
}

func (s *Snapshot) add(f File) {
	s.index[f.Path] = len(s.files)
	s.files = append(s.files, f)
	s.totalSize += f.Size
}

// Root returns the absolute repository root ("" for in-memory snapshots).
func (s *Snapshot) Root() string {
	return s.root
}

// Files returns the listing in walk order.
func (s *Snapshot) Files() []File {
	return s.files
}

// Has reports whether path is part of the listing.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.index[path]
	return ok
}

// TotalSize returns the summed size of all listed files.
func (s *Snapshot) TotalSize() int64 {
	return s.totalSize
}

// Warnings returns the files skipped while building the snapshot.
func (s *Snapshot) Warnings() []facts.Warning {
	return s.warnings
}

// ReadFile returns the content of a listed file. Reads are cached.
func (s *Snapshot) ReadFile(path string) ([]byte, error) {
	if !s.Has(path) {
		return nil, fmt.Errorf("reading %s: %w", path, fs.ErrNotExist)
	}
	if data, ok := s.memory[path]; ok {
		return data, nil
	}
	if data, ok := s.cache.Get(path); ok {
		return data, nil
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	s.cache.Add(path, data)
	return data, nil
}

// Dirs returns every directory that contains at least one listed file, sorted.
func (s *Snapshot) Dirs() []string {
	seen := make(map[string]bool)
	for _, f := range s.files {
		dir := facts.FileDir(f.Path)
		for dir != "." && !seen[dir] {
			seen[dir] = true
			dir = facts.FileDir(dir)
		}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Fingerprint hashes the listing (path, size, mtime). Identical listings
// produce identical fingerprints.
func (s *Snapshot) Fingerprint() string {
	paths := make([]string, 0, len(s.files))
	for _, f := range s.files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		f := s.files[s.index[p]]
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", f.Path, f.Size, f.ModTime.UnixNano())
		if data, ok := s.memory[p]; ok {
			h.Write(data)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsIgnored checks whether a path matches any ignore pattern.
func IsIgnored(relPath string, patterns []string) bool {
	// Normalize to forward slashes for matching
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range patterns {
		// Handle directory-only patterns
		if strings.HasSuffix(pattern, "/**") {
			dirPrefix := strings.TrimSuffix(pattern, "/**")
			if relPath == dirPrefix || strings.HasPrefix(relPath, dirPrefix+"/") {
				return true
			}
			// Nested occurrences such as a/node_modules/x
			if !strings.Contains(dirPrefix, "/") && strings.Contains("/"+relPath+"/", "/"+dirPrefix+"/") {
				return true
			}
		}

		// Standard glob match
		matched, err := filepath.Match(pattern, relPath)
		if err == nil && matched {
			return true
		}

		// Also try matching just the filename for patterns like **/*.go
		if strings.HasPrefix(pattern, "**/") {
			subPattern := strings.TrimPrefix(pattern, "**/")
			matched, err = filepath.Match(subPattern, filepath.Base(relPath))
			if err == nil && matched {
				return true
			}
			// Also try the full relative path
			matched, err = filepath.Match(subPattern, relPath)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}
