// Copyright 2018 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package unpacker implements the swupd.Unpacker collaborator: it
// extracts a downloaded pack or fullfile tar archive into the staged-file
// pool, auto-detecting the compression in use from the archive's magic
// bytes rather than requiring the caller to name it.
package unpacker

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Compression algorithms are identified by the magic bytes at the start
// of the archive, the same set the reference implementation recognizes,
// minus xz (never produced by this ecosystem's content servers without an
// external binary, which this package deliberately avoids).
var (
	gzipMagic = []byte{0x1F, 0x8B}
	bzip2Magic = []byte{'B', 'Z', 'h'}
	zstdMagic  = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic   = []byte{0x04, 0x22, 0x4D, 0x18}
)

// Unpacker extracts tar archives, transparently decompressing gzip,
// bzip2, zstd, or lz4 content. It satisfies swupd.Unpacker.
type Unpacker struct{}

// New returns an Unpacker.
func New() *Unpacker { return &Unpacker{} }

// Unpack extracts archivePath into outputDir, satisfying swupd.Unpacker.
func (Unpacker) Unpack(archivePath, outputDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrapf(err, "couldn't open archive %s", archivePath)
	}
	defer func() { _ = f.Close() }()

	tr, closer, err := newTarReader(f)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.Wrapf(err, "couldn't create output directory %s", outputDir)
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "invalid archive %s", archivePath)
		}
		if err := extractEntry(tr, hdr, outputDir); err != nil {
			return err
		}
	}
}

func newTarReader(f *os.File) (*tar.Reader, io.Closer, error) {
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil && err != io.ErrUnexpectedEOF {
		return nil, nil, errors.Wrap(err, "couldn't read archive header")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}

	switch {
	case bytes.HasPrefix(magic[:], gzipMagic):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, errors.Wrap(err, "couldn't decompress gzip archive")
		}
		return tar.NewReader(gr), gr, nil
	case bytes.HasPrefix(magic[:], bzip2Magic):
		return tar.NewReader(bzip2.NewReader(f)), nil, nil
	case bytes.HasPrefix(magic[:], zstdMagic):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, errors.Wrap(err, "couldn't decompress zstd archive")
		}
		return tar.NewReader(zr), zstdCloser{zr}, nil
	case bytes.HasPrefix(magic[:], lz4Magic):
		return tar.NewReader(lz4.NewReader(f)), nil, nil
	default:
		return tar.NewReader(f), nil, nil
	}
}

type zstdCloser struct{ *zstd.Decoder }

func (z zstdCloser) Close() error { z.Decoder.Close(); return nil }

func extractEntry(r io.Reader, hdr *tar.Header, outputDir string) error {
	target := filepath.Join(outputDir, filepath.Base(hdr.Name))

	switch hdr.Typeflag {
	case tar.TypeReg:
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
		if err != nil {
			return errors.Wrapf(err, "couldn't create %s", target)
		}
		if _, err := io.Copy(out, r); err != nil {
			_ = out.Close()
			return errors.Wrapf(err, "couldn't extract %s", target)
		}
		return out.Close()
	case tar.TypeSymlink:
		_ = os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeDir:
		return os.MkdirAll(target, hdr.FileInfo().Mode().Perm())
	default:
		return fmt.Errorf("unsupported entry type %c for %s", hdr.Typeflag, hdr.Name)
	}
}
