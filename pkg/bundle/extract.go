// Package bundle implements the bundle extractor: decompressing a gzipped
// tar stream into a working directory while enforcing path containment and
// file ownership.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cuemby/keeper/pkg/kerrs"
	"github.com/cuemby/keeper/pkg/security"
)

// Extract decompresses the gzip stream at bundlePath and writes every
// regular file and directory entry into workDir. Symlinks, hardlinks,
// devices, and any other non-regular-file entry are silently ignored.
//
// Every tar entry is first passed through the traversal filter: absolute
// paths and entries whose cleaned path escapes workDir fail the whole
// extraction with kerrs.BundleUnsafe. On any error, workDir is recursively
// removed before the error is returned — extraction is not resumable; the
// caller must obtain a fresh workDir and retry.
//
// If owner is non-nil, every directory created (including workDir's
// subdirectories created on demand) and every file written is chowned to
// owner before any content lands in it.
func Extract(bundlePath, workDir string, owner *security.Owner) error {
	f, err := os.Open(bundlePath)
	if err != nil {
		return kerrs.New(kerrs.BundleIO, "open bundle", err)
	}
	defer f.Close()

	if err := extractStream(f, workDir, owner); err != nil {
		_ = os.RemoveAll(workDir)
		return err
	}
	return nil
}

func extractStream(r io.Reader, workDir string, owner *security.Owner) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return kerrs.New(kerrs.BundleIO, "open gzip stream", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return kerrs.New(kerrs.BundleIO, "read tar entry", err)
		}

		target, ok, err := safeJoin(workDir, hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := mkdirChowned(target, os.FileMode(hdr.Mode).Perm(), owner); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := mkdirChowned(filepath.Dir(target), 0o755, owner); err != nil {
				return err
			}
			if err := writeFileChowned(target, os.FileMode(hdr.Mode).Perm(), tr, owner); err != nil {
				return err
			}
		default:
			// symlinks, hardlinks, devices, fifos: ignored.
		}
	}
}

// safeJoin rejects absolute entry names and any entry whose cleaned path
// escapes root. ok is true whenever err is nil: safeJoin never asks the
// caller to skip an entry (non-regular types are skipped by the caller);
// err is non-nil when the entry fails the traversal check and the whole
// extraction must abort with kerrs.BundleUnsafe.
func safeJoin(root, name string) (target string, ok bool, err error) {
	if filepath.IsAbs(name) {
		return "", false, kerrs.New(kerrs.BundleUnsafe, "extract "+name, fmt.Errorf("absolute path in archive"))
	}
	cleaned := filepath.Clean(filepath.Join(root, name))
	rootWithSep := strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)
	if cleaned != strings.TrimSuffix(root, string(filepath.Separator)) && !strings.HasPrefix(cleaned, rootWithSep) {
		return "", false, kerrs.New(kerrs.BundleUnsafe, "extract "+name, fmt.Errorf("path escapes archive root"))
	}
	return cleaned, true, nil
}

func mkdirChowned(dir string, perm os.FileMode, owner *security.Owner) error {
	if perm == 0 {
		perm = 0o755
	}
	var created []string
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil || filepath.Dir(d) == d {
			break
		}
		created = append(created, d)
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return kerrs.New(kerrs.BundleIO, "mkdir "+dir, err)
	}
	for i := len(created) - 1; i >= 0; i-- {
		if err := security.ChownPath(created[i], owner); err != nil {
			return err
		}
	}
	if err := security.ChownPath(dir, owner); err != nil {
		return err
	}
	return nil
}

// writeFileChowned opens target with O_CLOEXEC set (so a later exec of the
// child process never inherits this descriptor), chowns it immediately
// while the descriptor is still exclusively held — before any content is
// written — then copies src into it.
func writeFileChowned(target string, perm os.FileMode, src io.Reader, owner *security.Owner) error {
	if perm == 0 {
		perm = 0o644
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC | syscall.O_CLOEXEC
	f, err := os.OpenFile(target, flags, perm)
	if err != nil {
		return kerrs.New(kerrs.BundleIO, "create "+target, err)
	}
	defer f.Close()

	if err := security.ChownFile(f, owner); err != nil {
		return err
	}

	if _, err := io.Copy(f, src); err != nil {
		return kerrs.New(kerrs.BundleIO, "write "+target, err)
	}
	return nil
}
