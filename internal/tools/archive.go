// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/dustin/go-humanize"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
)

// ArchiveFormat names a supported archive container.
type ArchiveFormat string

const (
	FormatZip   ArchiveFormat = "zip"
	FormatTar   ArchiveFormat = "tar"
	FormatGzTar ArchiveFormat = "gztar"
	FormatBzTar ArchiveFormat = "bztar"
)

var supportedFormats = []ArchiveFormat{FormatZip, FormatTar, FormatGzTar, FormatBzTar}

// ResolveArchiveFormat normalizes format. A bare "tar" is upgraded to the
// compressed variant the archive name implies.
func ResolveArchiveFormat(name, format string) (ArchiveFormat, error) {
	f := ArchiveFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = FormatZip
	}
	if f == FormatTar {
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
			f = FormatGzTar
		case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
			f = FormatBzTar
		}
	}
	for _, supported := range supportedFormats {
		if f == supported {
			return f, nil
		}
	}
	return "", apperrors.Newf(apperrors.CodeUnsupportedFormat, "unsupported archive format '%s', supported formats: zip, tar, gztar, bztar", format)
}

type archiveRoot struct {
	abs string
	arc string
}

// Archive packs items into a new archive at name. The archive must not
// exist. Directories are walked recursively and every discovered entry is
// validated again; any failure removes the partial archive.
func (t *Toolset) Archive(ctx context.Context, name string, items []string, format string) (string, error) {
	dst, err := t.validate(name, sandbox.Options{})
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(dst); err == nil {
		return "", apperrors.Newf(apperrors.CodeAlreadyExists, "archive '%s' already exists", name)
	}
	if len(items) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "no files or directories given to archive")
	}

	roots := make([]archiveRoot, 0, len(items))
	for _, item := range items {
		resolved, err := t.validate(item, sandbox.Options{CheckExistence: true})
		if err != nil {
			return "", &apperrors.Error{Code: apperrors.CodeOf(err), Message: fmt.Sprintf("cannot archive item '%s'", item), Err: err}
		}
		roots = append(roots, archiveRoot{abs: resolved, arc: t.archiveName(item, resolved)})
	}

	archiveFormat, err := ResolveArchiveFormat(name, format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", ioError("failed to create parent directories for '%s'", err, name)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", apperrors.Newf(apperrors.CodeAlreadyExists, "archive '%s' already exists", name)
		}
		return "", ioError("failed to create archive '%s'", err, name)
	}

	w, err := newArchiveWriter(f, archiveFormat)
	if err == nil {
		var count int
		count, err = t.writeArchive(ctx, w, roots, dst)
		if closeErr := w.Close(); err == nil && closeErr != nil {
			err = ioError("failed to finalize archive '%s'", closeErr, name)
		}
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = ioError("failed to finalize archive '%s'", closeErr, name)
		}
		if err == nil {
			size := "unknown size"
			if info, statErr := os.Stat(dst); statErr == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			return fmt.Sprintf("Created archive '%s' (format: %s, %d entries, %s).", name, archiveFormat, count, size), nil
		}
	} else {
		f.Close()
	}

	if removeErr := os.Remove(dst); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", ioError("failed to remove partial archive '%s' after error (%v)", removeErr, name, err)
	}
	if apperrors.CodeOf(err) == "" {
		err = ioError("failed to create archive '%s'", err, name)
	}
	return "", err
}

// archiveName is the slash-separated member name for an item, taken from
// the path as written so that symlinked items keep their own name.
func (t *Toolset) archiveName(item, resolved string) string {
	lexical := item
	if !filepath.IsAbs(lexical) {
		lexical = filepath.Join(t.box.Root(), lexical)
	}
	rel, err := filepath.Rel(t.box.Root(), filepath.Clean(lexical))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return t.box.Rel(resolved)
	}
	return filepath.ToSlash(rel)
}

func (t *Toolset) writeArchive(ctx context.Context, w archiveWriter, roots []archiveRoot, self string) (int, error) {
	count := 0
	written := make(map[string]bool)
	for _, root := range roots {
		info, err := os.Stat(root.abs)
		if err != nil {
			return count, ioError("failed to stat '%s'", err, root.arc)
		}
		if !info.IsDir() {
			if root.abs == self || written[root.arc] {
				continue
			}
			written[root.arc] = true
			if err := w.addFile(root.arc, root.abs, info); err != nil {
				return count, err
			}
			count++
			continue
		}

		err = filepath.WalkDir(root.abs, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return ioError("failed to walk '%s'", walkErr, t.box.Rel(p))
			}
			if err := ctx.Err(); err != nil {
				return ioError("archiving interrupted", err)
			}
			if p == self {
				return nil
			}
			rel, err := filepath.Rel(root.abs, p)
			if err != nil {
				return ioError("failed to name '%s'", err, p)
			}
			arc := path.Join(root.arc, filepath.ToSlash(rel))
			if written[arc] {
				return nil
			}

			target, err := t.validate(p, sandbox.Options{CheckExistence: true})
			if err != nil {
				return err
			}
			entryInfo, err := os.Stat(target)
			if err != nil {
				return ioError("failed to stat '%s'", err, arc)
			}
			switch {
			case entryInfo.IsDir():
				if d.Type()&fs.ModeSymlink != 0 || arc == "." {
					return nil
				}
				if err := w.addDir(arc, entryInfo); err != nil {
					return err
				}
			case entryInfo.Mode().IsRegular():
				if err := w.addFile(arc, target, entryInfo); err != nil {
					return err
				}
			default:
				return nil
			}
			written[arc] = true
			count++
			return nil
		})
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

type archiveWriter interface {
	addDir(name string, info fs.FileInfo) error
	addFile(name, abs string, info fs.FileInfo) error
	Close() error
}

func newArchiveWriter(f *os.File, format ArchiveFormat) (archiveWriter, error) {
	switch format {
	case FormatZip:
		return &zipArchiveWriter{zw: zip.NewWriter(f)}, nil
	case FormatTar:
		return &tarArchiveWriter{tw: tar.NewWriter(f)}, nil
	case FormatGzTar:
		gz := gzip.NewWriter(f)
		return &tarArchiveWriter{tw: tar.NewWriter(gz), compressor: gz}, nil
	case FormatBzTar:
		bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, ioError("failed to start bzip2 stream", err)
		}
		return &tarArchiveWriter{tw: tar.NewWriter(bz), compressor: bz}, nil
	}
	return nil, apperrors.Newf(apperrors.CodeUnsupportedFormat, "unsupported archive format '%s'", format)
}

type zipArchiveWriter struct {
	zw *zip.Writer
}

func (z *zipArchiveWriter) addDir(name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return ioError("failed to add directory '%s'", err, name)
	}
	header.Name = strings.TrimSuffix(name, "/") + "/"
	if _, err := z.zw.CreateHeader(header); err != nil {
		return ioError("failed to add directory '%s'", err, name)
	}
	return nil
}

func (z *zipArchiveWriter) addFile(name, abs string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return ioError("failed to add file '%s'", err, name)
	}
	header.Name = name
	header.Method = zip.Deflate
	dst, err := z.zw.CreateHeader(header)
	if err != nil {
		return ioError("failed to add file '%s'", err, name)
	}
	return copyFileInto(dst, abs, name)
}

func (z *zipArchiveWriter) Close() error {
	return z.zw.Close()
}

type tarArchiveWriter struct {
	tw         *tar.Writer
	compressor io.WriteCloser
}

func (w *tarArchiveWriter) addDir(name string, info fs.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return ioError("failed to add directory '%s'", err, name)
	}
	header.Name = strings.TrimSuffix(name, "/") + "/"
	if err := w.tw.WriteHeader(header); err != nil {
		return ioError("failed to add directory '%s'", err, name)
	}
	return nil
}

func (w *tarArchiveWriter) addFile(name, abs string, info fs.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return ioError("failed to add file '%s'", err, name)
	}
	header.Name = name
	if err := w.tw.WriteHeader(header); err != nil {
		return ioError("failed to add file '%s'", err, name)
	}
	return copyFileInto(w.tw, abs, name)
}

func (w *tarArchiveWriter) Close() error {
	err := w.tw.Close()
	if w.compressor != nil {
		if cerr := w.compressor.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func copyFileInto(dst io.Writer, abs, name string) error {
	src, err := os.Open(abs)
	if err != nil {
		return ioError("failed to open '%s'", err, name)
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return ioError("failed to add file '%s'", err, name)
	}
	return nil
}
