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

package swupd

import "testing"

func TestBundleInfoFromMoMMarksTrackedBundles(t *testing.T) {
	mom := &MoM{Manifest: Manifest{Files: []*File{
		{Path: "os-core", Type: TypeManifest, LastChange: 10},
		{Path: "editors", Type: TypeManifest, LastChange: 10},
		{Path: "retired", Type: TypeDeleted, LastChange: 5},
	}}}

	ctx := Context{Paths: Paths{Prefix: t.TempDir(), StateDir: t.TempDir()}}
	tracking := NewTrackingStore(ctx)
	if err := tracking.Track("os-core"); err != nil {
		t.Fatalf("Track: %v", err)
	}

	infos := BundleInfoFromMoM(mom, tracking)
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2 (deleted MoM entries are not bundles)", len(infos))
	}

	byName := map[string]BundleInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	if !byName["os-core"].Installed {
		t.Error("expected os-core to be marked installed")
	}
	if byName["editors"].Installed {
		t.Error("expected editors to be marked not installed")
	}
}

func TestFilterBundlesNilFilterPassesEverything(t *testing.T) {
	infos := []BundleInfo{{Name: "os-core"}, {Name: "editors"}}
	out, err := FilterBundles(infos, nil)
	if err != nil {
		t.Fatalf("FilterBundles: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestCompileBundleFilterMatchesByName(t *testing.T) {
	filter, err := CompileBundleFilter(`name == "editors"`)
	if err != nil {
		t.Fatalf("CompileBundleFilter: %v", err)
	}

	infos := []BundleInfo{{Name: "os-core"}, {Name: "editors"}}
	out, err := FilterBundles(infos, filter)
	if err != nil {
		t.Fatalf("FilterBundles: %v", err)
	}
	if len(out) != 1 || out[0].Name != "editors" {
		t.Fatalf("out = %+v, want only editors", out)
	}
}

func TestCompileBundleFilterMatchesInstalledAndSize(t *testing.T) {
	filter, err := CompileBundleFilter(`installed && content_size > uint(1000)`)
	if err != nil {
		t.Fatalf("CompileBundleFilter: %v", err)
	}

	infos := []BundleInfo{
		{Name: "small", Installed: true, ContentSize: 10},
		{Name: "big", Installed: true, ContentSize: 5000},
		{Name: "big-not-installed", Installed: false, ContentSize: 5000},
	}
	out, err := FilterBundles(infos, filter)
	if err != nil {
		t.Fatalf("FilterBundles: %v", err)
	}
	if len(out) != 1 || out[0].Name != "big" {
		t.Fatalf("out = %+v, want only big", out)
	}
}

func TestCompileBundleFilterRejectsInvalidExpression(t *testing.T) {
	if _, err := CompileBundleFilter("name =="); err == nil {
		t.Fatal("expected a compile error for a malformed expression")
	}
}
