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

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newTrackingFixture(t *testing.T) *TrackingStore {
	t.Helper()
	prefix := t.TempDir()
	state := t.TempDir()
	return NewTrackingStore(Context{Paths: Paths{Prefix: prefix, StateDir: state}})
}

func TestTrackUntrackIsTracked(t *testing.T) {
	tr := newTrackingFixture(t)

	if tr.IsTracked("os-core") {
		t.Fatal("os-core should not be tracked before Track is called")
	}
	if err := tr.Track("os-core"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !tr.IsTracked("os-core") {
		t.Fatal("expected os-core to be tracked")
	}

	// Tracking an already-tracked bundle is a no-op, not an error.
	if err := tr.Track("os-core"); err != nil {
		t.Fatalf("Track (idempotent): %v", err)
	}

	if err := tr.Untrack("os-core"); err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	if tr.IsTracked("os-core") {
		t.Fatal("expected os-core to no longer be tracked")
	}

	// Untracking something never tracked is also not an error.
	if err := tr.Untrack("never-tracked"); err != nil {
		t.Fatalf("Untrack (never tracked): %v", err)
	}
}

func TestTrackedNames(t *testing.T) {
	tr := newTrackingFixture(t)

	names, err := tr.TrackedNames()
	if err != nil {
		t.Fatalf("TrackedNames (empty): %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("TrackedNames (empty) = %v, want none", names)
	}

	for _, name := range []string{"editors", "os-core"} {
		if err := tr.Track(name); err != nil {
			t.Fatalf("Track(%s): %v", name, err)
		}
	}

	names, err = tr.TrackedNames()
	if err != nil {
		t.Fatalf("TrackedNames: %v", err)
	}
	sort.Strings(names)
	want := []string{"editors", "os-core"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("TrackedNames = %v, want %v", names, want)
	}
}

func TestSeedSkipsMoMSentinel(t *testing.T) {
	prefix := t.TempDir()
	state := t.TempDir()
	ctx := Context{Paths: Paths{Prefix: prefix, StateDir: state}}

	sysBundles := ctx.Paths.systemBundles()
	if err := os.MkdirAll(sysBundles, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, name := range []string{"os-core", "editors", momSentinel} {
		if err := os.WriteFile(filepath.Join(sysBundles, name), nil, 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}

	tr := NewTrackingStore(ctx)
	if err := tr.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if !tr.IsTracked("os-core") || !tr.IsTracked("editors") {
		t.Fatal("expected both real bundle entries to be tracked after Seed")
	}
	if tr.IsTracked(momSentinel) {
		t.Fatal("the MoM sentinel must never become a tracking record")
	}
}

func TestSeedToleratesMissingSystemBundleDir(t *testing.T) {
	tr := newTrackingFixture(t)
	if err := tr.Seed(); err != nil {
		t.Fatalf("Seed should tolerate a missing system bundle directory: %v", err)
	}
}
