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
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"

	apperrors "shellai/internal/errors"
	"shellai/internal/sandbox"
)

type containerKind int

const (
	containerUnknown containerKind = iota
	containerZip
	containerTar
	containerGzTar
	containerBzTar
)

// member is one archive entry scheduled for extraction.
type member struct {
	name   string
	target string
	isDir  bool
	mode   os.FileMode
	// skip marks entries that are listed but never written (links, devices).
	skip bool
}

// Extract unpacks an archive into destination, creating it if needed.
// members optionally restricts extraction; see selectMembers. All target
// paths are validated before anything is written.
func (t *Toolset) Extract(ctx context.Context, name, destination string, members []string) (string, error) {
	if destination == "" {
		destination = "."
	}
	src, err := t.mustExistFile(name)
	if err != nil {
		return "", err
	}
	dest, err := t.validate(destination, sandbox.Options{ExpectDir: true})
	if err != nil {
		return "", err
	}

	kind, err := detectContainer(src, name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", ioError("failed to create destination '%s'", err, destination)
	}

	var extracted []string
	var unmatched []string
	switch kind {
	case containerZip:
		extracted, unmatched, err = t.extractZip(ctx, src, dest, name, members)
	default:
		extracted, unmatched, err = t.extractTar(ctx, src, dest, name, kind, members)
	}
	if err != nil {
		return "", err
	}

	display := t.box.Label()
	if dest != t.box.Root() {
		display = "./" + t.box.Rel(dest)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Extracted %d member(s) from '%s' to '%s'.", len(extracted), name, display)
	if len(extracted) > 0 {
		preview := extracted
		more := ""
		if len(preview) > t.limits.PreviewMembers {
			preview = preview[:t.limits.PreviewMembers]
			more = "..."
		}
		fmt.Fprintf(&b, "\nExtracted members (partial): %s%s", strings.Join(preview, ", "), more)
	}
	if len(unmatched) > 0 {
		fmt.Fprintf(&b, "\nNot found in archive: %s", strings.Join(unmatched, ", "))
	}
	return b.String(), nil
}

// detectContainer identifies the archive by its leading bytes. A ".zip"
// name always selects zip.
func detectContainer(src, name string) (containerKind, error) {
	f, err := os.Open(src)
	if err != nil {
		return containerUnknown, ioError("failed to open archive '%s'", err, name)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	head = head[:n]

	switch {
	case strings.HasSuffix(strings.ToLower(name), ".zip"),
		bytes.HasPrefix(head, []byte("PK\x03\x04")),
		bytes.HasPrefix(head, []byte("PK\x05\x06")):
		return containerZip, nil
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		return containerGzTar, nil
	case bytes.HasPrefix(head, []byte("BZh")):
		return containerBzTar, nil
	case len(head) >= 262 && bytes.Equal(head[257:262], []byte("ustar")):
		return containerTar, nil
	}
	if len(head) == 512 {
		if _, err := tar.NewReader(bytes.NewReader(head)).Next(); err == nil {
			return containerTar, nil
		}
	}
	return containerUnknown, apperrors.Newf(apperrors.CodeUnsupportedFormat, "unrecognized archive format or corrupted file '%s'", name)
}

func (t *Toolset) extractZip(ctx context.Context, src, dest, name string, requested []string) ([]string, []string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeUnsupportedFormat, fmt.Sprintf("failed to open zip archive '%s'", name), err)
	}
	defer zr.Close()

	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	selected, unmatched, err := selectMembers(names, requested)
	if err != nil {
		return nil, nil, err
	}

	plan := make([]member, 0, len(selected))
	for _, idx := range selected {
		f := zr.File[idx]
		m, err := t.planMember(dest, f.Name, f.FileInfo().IsDir(), f.Mode())
		if err != nil {
			return nil, nil, err
		}
		m.skip = !m.isDir && !f.Mode().IsRegular()
		plan = append(plan, m)
	}

	var extracted []string
	for i, m := range plan {
		if err := ctx.Err(); err != nil {
			return nil, nil, ioError("extraction of '%s' interrupted", err, name)
		}
		if m.skip {
			continue
		}
		f := zr.File[selected[i]]
		err := writeMember(m, func() (io.ReadCloser, error) { return f.Open() })
		if err != nil {
			return nil, nil, err
		}
		extracted = append(extracted, m.name)
	}
	return extracted, unmatched, nil
}

func (t *Toolset) extractTar(ctx context.Context, src, dest, name string, kind containerKind, requested []string) ([]string, []string, error) {
	// First pass collects names for selection; the second streams content.
	var headers []*tar.Header
	err := walkTar(src, name, kind, func(h *tar.Header, _ io.Reader) error {
		headers = append(headers, h)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, len(headers))
	for i, h := range headers {
		names[i] = h.Name
	}
	selected, unmatched, err := selectMembers(names, requested)
	if err != nil {
		return nil, nil, err
	}

	plan := make(map[int]member, len(selected))
	for _, idx := range selected {
		h := headers[idx]
		m, err := t.planMember(dest, h.Name, h.Typeflag == tar.TypeDir, h.FileInfo().Mode())
		if err != nil {
			return nil, nil, err
		}
		m.skip = h.Typeflag != tar.TypeDir && h.Typeflag != tar.TypeReg
		plan[idx] = m
	}

	var extracted []string
	idx := -1
	err = walkTar(src, name, kind, func(h *tar.Header, r io.Reader) error {
		idx++
		m, ok := plan[idx]
		if !ok || m.skip {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return ioError("extraction of '%s' interrupted", err, name)
		}
		if err := writeMember(m, func() (io.ReadCloser, error) { return io.NopCloser(r), nil }); err != nil {
			return err
		}
		extracted = append(extracted, m.name)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return extracted, unmatched, nil
}

func walkTar(src, name string, kind containerKind, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(src)
	if err != nil {
		return ioError("failed to open archive '%s'", err, name)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	switch kind {
	case containerGzTar:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeUnsupportedFormat, fmt.Sprintf("corrupted gzip archive '%s'", name), err)
		}
		defer gz.Close()
		r = gz
	case containerBzTar:
		bz, err := bzip2.NewReader(r, nil)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeUnsupportedFormat, fmt.Sprintf("corrupted bzip2 archive '%s'", name), err)
		}
		defer bz.Close()
		r = bz
	}

	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperrors.Wrap(apperrors.CodeUnsupportedFormat, fmt.Sprintf("corrupted tar archive '%s'", name), err)
		}
		if err := fn(h, tr); err != nil {
			return err
		}
	}
}

// planMember maps an archive entry name to its destination and validates
// it. Entries that would land outside dest or the sandbox abort extraction.
func (t *Toolset) planMember(dest, rawName string, isDir bool, mode os.FileMode) (member, error) {
	name := normalizeMemberName(rawName)
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !sandbox.HasPathPrefix(target, dest) {
		return member{}, apperrors.Newf(apperrors.CodeOutOfSandbox, "archive member '%s' would be extracted outside the destination", rawName)
	}
	resolved, err := t.validate(target, sandbox.Options{})
	if err != nil {
		return member{}, err
	}
	return member{name: name, target: resolved, isDir: isDir || strings.HasSuffix(name, "/"), mode: mode}, nil
}

func writeMember(m member, open func() (io.ReadCloser, error)) error {
	if m.isDir {
		if err := os.MkdirAll(m.target, 0o755); err != nil {
			return ioError("failed to create directory for member '%s'", err, m.name)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.target), 0o755); err != nil {
		return ioError("failed to create parent directories for member '%s'", err, m.name)
	}
	perm := m.mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	rc, err := open()
	if err != nil {
		return ioError("failed to read member '%s'", err, m.name)
	}
	defer rc.Close()
	out, err := os.OpenFile(m.target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return ioError("failed to write member '%s'", err, m.name)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return ioError("failed to write member '%s'", err, m.name)
	}
	if err := out.Close(); err != nil {
		return ioError("failed to write member '%s'", err, m.name)
	}
	return nil
}

func normalizeMemberName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// memberKey identifies an entry regardless of a "./" prefix or a trailing
// slash.
func memberKey(name string) string {
	return strings.TrimSuffix(path.Clean("/"+name), "/")
}

// selectMembers picks entry indices for the requested names, in archive
// order. Entries that repeat an earlier name are dropped. A request matches entries with exactly that
// name; if none match, or the request ends in "/", it selects every entry
// under "request/". An empty request list selects everything. Requests that
// match nothing are returned as unmatched; if no request matches at all the
// call fails with not_found.
func selectMembers(names, requested []string) ([]int, []string, error) {
	normalized := make([]string, len(names))
	for i, n := range names {
		normalized[i] = normalizeMemberName(n)
	}

	chosen := make([]bool, len(names))
	if len(requested) == 0 {
		for i := range chosen {
			chosen[i] = true
		}
	}
	var unmatched []string
	for _, req := range requested {
		query := normalizeMemberName(req)
		matched := false
		if !strings.HasSuffix(query, "/") {
			for i, n := range normalized {
				if n == query {
					chosen[i] = true
					matched = true
				}
			}
		}
		if !matched {
			prefix := strings.TrimSuffix(query, "/") + "/"
			for i, n := range normalized {
				if strings.HasPrefix(n, prefix) {
					chosen[i] = true
					matched = true
				}
			}
		}
		if !matched {
			unmatched = append(unmatched, req)
		}
	}

	var selected []int
	seen := make(map[string]bool, len(names))
	for i, ok := range chosen {
		if !ok {
			continue
		}
		key := memberKey(normalized[i])
		if seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, i)
	}
	if len(requested) == 0 {
		return selected, nil, nil
	}
	if len(selected) == 0 {
		return nil, unmatched, apperrors.Newf(apperrors.CodeNotFound, "none of the requested members were found in the archive: %s", strings.Join(requested, ", "))
	}
	return selected, unmatched, nil
}
