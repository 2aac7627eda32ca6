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

func TestConsolidatePrefersPresentOverDeleted(t *testing.T) {
	a := &Manifest{Files: []*File{{Path: "/usr/bin/foo", Type: TypeDeleted, LastChange: 20}}}
	b := &Manifest{Files: []*File{{Path: "/usr/bin/foo", Type: TypeFile, Hash: Hash{1}, LastChange: 10}}}

	result := Consolidate([]*Manifest{a, b})
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
	if !result[0].Present() {
		t.Error("expected the present record to win over the deleted one regardless of LastChange")
	}
}

func TestConsolidateHigherLastChangeWinsAmongPresent(t *testing.T) {
	a := &Manifest{Files: []*File{{Path: "/usr/bin/foo", Type: TypeFile, Hash: Hash{1}, LastChange: 10}}}
	b := &Manifest{Files: []*File{{Path: "/usr/bin/foo", Type: TypeFile, Hash: Hash{2}, LastChange: 20}}}

	result := Consolidate([]*Manifest{a, b})
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
	if result[0].LastChange != 20 {
		t.Errorf("LastChange = %d, want 20", result[0].LastChange)
	}
}

func TestFilesToUnlinkExcludesFilesStillClaimedByKeptBundles(t *testing.T) {
	removed := []*Manifest{{Files: []*File{
		{Path: "/usr/bin/shared", Type: TypeFile, Hash: Hash{1}, LastChange: 1},
		{Path: "/usr/bin/only-removed", Type: TypeFile, Hash: Hash{2}, LastChange: 1},
	}}}
	kept := []*Manifest{{Files: []*File{
		{Path: "/usr/bin/shared", Type: TypeFile, Hash: Hash{1}, LastChange: 1},
	}}}

	unlink := FilesToUnlink(removed, kept)
	if len(unlink) != 1 || unlink[0].Path != "/usr/bin/only-removed" {
		t.Errorf("unlink = %+v, want only /usr/bin/only-removed", unlink)
	}
}

func TestFilterOutExisting(t *testing.T) {
	desired := []*File{
		{Path: "/a", Hash: Hash{1}},
		{Path: "/b", Hash: Hash{2}},
	}
	installed := []*File{
		{Path: "/a", Hash: Hash{1}},
		{Path: "/b", Hash: Hash{99}},
	}

	out := FilterOutExisting(desired, installed)
	if len(out) != 1 || out[0].Path != "/b" {
		t.Errorf("FilterOutExisting = %+v, want only /b (hash changed)", out)
	}
}
