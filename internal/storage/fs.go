package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/checksum"
)

// FS implements Provider on the local file system.
type FS struct {
	root string // absolute path to the object root
}

// NewFS creates a provider rooted at root, creating the directory if needed.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// safePath resolves a key against the root and rejects any result that
// escapes it.
func (f *FS) safePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage: empty key: %w", apperr.ErrValidation)
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute keys not allowed: %s: %w", key, apperr.ErrValidation)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve key: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: key escapes root: %s: %w", key, apperr.ErrValidation)
	}
	return abs, nil
}

// Put writes data atomically: tmp file, fsync, rename.
func (f *FS) Put(_ context.Context, key string, data []byte) (*Object, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".alignos-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return nil, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return nil, fmt.Errorf("storage: rename: %w", err)
	}
	success = true

	return &Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType(key),
		Checksum:    checksum.Sum(data),
		ModTime:     time.Now().UTC(),
	}, nil
}

// Get reads an object.
func (f *FS) Get(_ context.Context, key string) ([]byte, *Object, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil, notFound(key, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, notFound(key, err)
	}
	return data, &Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType(key),
		Checksum:    checksum.Sum(data),
		ModTime:     info.ModTime().UTC(),
	}, nil
}

// Stat returns metadata without the checksum.
func (f *FS) Stat(_ context.Context, key string) (*Object, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, notFound(key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("storage: %s: %w", key, apperr.ErrNotFound)
	}
	return &Object{Key: key, Size: info.Size(), ContentType: contentType(key), ModTime: info.ModTime().UTC()}, nil
}

// Delete removes an object.
func (f *FS) Delete(_ context.Context, key string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return notFound(key, err)
	}
	return nil
}

// List walks the root and returns objects under prefix, sorted by key.
// Temp files from in-flight writes are skipped.
func (f *FS) List(_ context.Context, prefix string) ([]Object, error) {
	out := []Object{}
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".alignos-tmp-") {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{Key: key, Size: info.Size(), ContentType: contentType(key), ModTime: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadKey derives a content-addressed key for an uploaded file:
// uploads/<yyyy>/<mm>/<digest prefix>-<sanitised name>.
func UploadKey(filename string, data []byte, now time.Time) string {
	name := unsafeChars.ReplaceAllString(path.Base(filepath.ToSlash(filename)), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("uploads/%04d/%02d/%s-%s", now.Year(), int(now.Month()), checksum.Sum(data)[:12], name)
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w", key, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s: %w", key, err)
}
