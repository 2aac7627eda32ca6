// Copyright 2017 Intel Corporation
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

package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clearlinux/swupd-client/swupd"
)

func TestFetchFromLocalContentRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "10"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "10", "Manifest.MoM"), []byte("MANIFEST\t10\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f := New(root, t.TempDir())
	got, err := f.Fetch(swupd.KindMoM, 10, "MoM")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "MANIFEST\t10\n" {
		t.Errorf("content = %q", got)
	}
}

func TestFetchBundleManifestRelativePath(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "20")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Manifest.editors"), []byte("body"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f := New(root, t.TempDir())
	got, err := f.Fetch(swupd.KindBundleManifest, 20, "editors")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "body" {
		t.Errorf("content = %q, want %q", got, "body")
	}
}

func TestFetchMissingFileReturnsError(t *testing.T) {
	f := New(t.TempDir(), t.TempDir())
	if _, err := f.Fetch(swupd.KindMoM, 1, "MoM"); err == nil {
		t.Fatal("expected an error for a missing local manifest")
	}
}

func TestPrefetchAllWarmsEveryRequest(t *testing.T) {
	root := t.TempDir()
	for _, v := range []string{"1", "2", "3"} {
		dir := filepath.Join(root, v)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "Manifest.MoM"), []byte(v), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	f := New(root, t.TempDir())
	reqs := []Request{
		{Kind: swupd.KindMoM, Version: 1, Identifier: "MoM"},
		{Kind: swupd.KindMoM, Version: 2, Identifier: "MoM"},
		{Kind: swupd.KindMoM, Version: 3, Identifier: "MoM"},
	}
	if err := f.PrefetchAll(reqs, 2); err != nil {
		t.Fatalf("PrefetchAll: %v", err)
	}
}

func TestPrefetchAllReportsMissingRequest(t *testing.T) {
	f := New(t.TempDir(), t.TempDir())
	reqs := []Request{{Kind: swupd.KindMoM, Version: 99, Identifier: "MoM"}}
	if err := f.PrefetchAll(reqs, 2); err == nil {
		t.Fatal("expected PrefetchAll to report the missing manifest")
	}
}
