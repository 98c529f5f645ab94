// Package storage materializes remote assets onto the local filesystem. All
// writes stay within a configured working root; requested paths that resolve
// outside it are rejected, and existing files are never overwritten.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"genvoy/internal/domain"
)

// Workspace is the safe-path layer rooted at the process working directory
// (or an explicitly configured root). It is intended for the bridge's
// single-writer-per-path usage; the disambiguation check is not atomic
// against concurrent writers of the same stem.
type Workspace struct {
	root string
	// realRoot is root with symlinks resolved; containment is checked
	// against it so a symlink inside the root cannot smuggle writes out.
	realRoot string
}

// NewWorkspace initializes a Workspace rooted at root, creating it if needed.
func NewWorkspace(root string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: working root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve working root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure working root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve working root: %w", err)
	}
	return &Workspace{root: abs, realRoot: realRoot}, nil
}

// Root returns the configured working root.
func (w *Workspace) Root() string {
	if w == nil {
		return ""
	}
	return w.root
}

// EnsureSafe makes path absolute against the working root and rejects any
// path that escapes it. Symlinks are resolved before the containment check,
// so a link inside the root pointing outside it is rejected the same as a
// ../ escape. This is the security boundary; it is never bypassed.
func (w *Workspace) EnsureSafe(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	resolved := filepath.Clean(path)
	real, err := resolveExisting(resolved)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	rel, err := filepath.Rel(w.realRoot, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.Errf(domain.CodePathTraversal,
			"resolved path %q is outside working directory %q", resolved, w.root)
	}
	return resolved, nil
}

// resolveExisting resolves symlinks in the deepest existing ancestor of path
// and re-joins the not-yet-created suffix, so containment is judged on where
// a write would actually land. Dangling symlinks are followed too: a planted
// link at the final name must not redirect the write.
func resolveExisting(path string) (string, error) {
	suffix := ""
	current := path
	for i := 0; i < 40; i++ {
		real, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(real, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		if info, lerr := os.Lstat(current); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			target, rerr := os.Readlink(current)
			if rerr != nil {
				return "", rerr
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(current), target)
			}
			current = filepath.Clean(target)
			continue
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		current = parent
	}
	return "", errors.New("storage: too many levels of symbolic links")
}

// ResolveOutput computes the final local output path for a requested
// destination: absolute within the root, parent directories created, a
// preferred extension appended when the path has none, and a numeric
// disambiguator added while the name is taken.
func (w *Workspace) ResolveOutput(requested, preferredExt string) (string, error) {
	safe, err := w.EnsureSafe(requested)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(safe), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if filepath.Ext(safe) == "" && preferredExt != "" {
		safe += preferredExt
	}
	// The extension and disambiguator can land on a pre-existing symlink, so
	// the containment check runs again on the final name.
	return w.EnsureSafe(uniquePath(safe))
}

// CopyInto copies src to a secondary destination under the same traversal and
// disambiguation rules, preserving content, file mode and modification time.
func (w *Workspace) CopyInto(src, dst string) (string, error) {
	target, err := w.EnsureSafe(dst)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	target = uniquePath(target)

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("storage: open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("storage: stat source: %w", err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("storage: create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("storage: copy content: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("storage: finish copy: %w", err)
	}
	if err := os.Chtimes(target, info.ModTime(), info.ModTime()); err != nil {
		return "", fmt.Errorf("storage: preserve timestamps: %w", err)
	}
	return target, nil
}

// uniquePath appends _1, _2, ... before the extension until no filesystem
// entry exists at the candidate. Check-then-act: acceptable for the
// single-writer-per-path usage pattern.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for idx := 1; ; idx++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, idx, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
