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

package unpacker

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func buildTar(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader(%s): %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write(%s): %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		t.Fatalf("gzip Write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
	return buf.Bytes()
}

func TestUnpackPlainTar(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive.tar")
	if err := os.WriteFile(archive, buildTar(t, map[string]string{"hello": "world"}), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := filepath.Join(dir, "out")
	if err := New().Unpack(archive, out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(out, "hello"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("content = %q, want %q", got, "world")
	}
}

func TestUnpackDetectsGzip(t *testing.T) {
	dir := t.TempDir()
	raw := buildTar(t, map[string]string{"hello": "gzipped world"})
	archive := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(archive, gzipBytes(t, raw), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := filepath.Join(dir, "out")
	if err := New().Unpack(archive, out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(out, "hello"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "gzipped world" {
		t.Errorf("content = %q, want %q", got, "gzipped world")
	}
}

func TestUnpackRejectsUnsupportedEntryType(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	// A character device entry has no place in a content archive.
	if err := tw.WriteHeader(&tar.Header{Name: "dev", Typeflag: tar.TypeChar, Mode: 0644}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	_ = tw.Close()

	archive := filepath.Join(dir, "archive.tar")
	if err := os.WriteFile(archive, buf.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := New().Unpack(archive, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected an error for an unsupported tar entry type")
	}
}
