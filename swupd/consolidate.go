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

import "sort"

// Consolidate merges the file lists of a list of manifests into a single,
// deduplicated, conflict-resolved view (§4.3). Among same-path duplicates,
// a non-deleted record wins over a deleted one; ties among non-deleted
// records resolve to the one with the higher LastChange. This guarantees
// that a file deleted by one bundle does not erase a file still provided
// by another installed bundle.
func Consolidate(manifests []*Manifest) []*File {
	var all []*File
	for _, m := range manifests {
		all = append(all, m.Files...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Path < all[j].Path
	})

	result := make([]*File, 0, len(all))
	i := 0
	for i < len(all) {
		j := i + 1
		best := all[i]
		for j < len(all) && all[j].Path == best.Path {
			best = pickWinner(best, all[j])
			j++
		}
		result = append(result, best)
		i = j
	}
	return result
}

// pickWinner resolves a same-path collision between two records per §4.3.
func pickWinner(a, b *File) *File {
	if a.Present() != b.Present() {
		if a.Present() {
			return a
		}
		return b
	}
	if !a.Present() {
		// both deleted; keep either, prefer newer bookkeeping
		if b.LastChange > a.LastChange {
			return b
		}
		return a
	}
	// both present: higher LastChange wins
	if b.LastChange > a.LastChange {
		return b
	}
	return a
}

// FilterOutDeleted drops records whose type is deleted.
func FilterOutDeleted(files []*File) []*File {
	out := make([]*File, 0, len(files))
	for _, f := range files {
		if f.Type != TypeDeleted {
			out = append(out, f)
		}
	}
	return out
}

// FilterOutExisting returns the records in desired whose (path, hash) pair
// is not already present in installed.
func FilterOutExisting(desired, installed []*File) []*File {
	have := make(map[string]Hash, len(installed))
	for _, f := range installed {
		have[f.Path] = f.Hash
	}

	out := make([]*File, 0, len(desired))
	for _, f := range desired {
		if h, ok := have[f.Path]; !ok || h != f.Hash {
			out = append(out, f)
		}
	}
	return out
}

// FilesToUnlink yields the paths present in removed but absent from the
// consolidated view of kept (§4.3). A path is "kept" if any kept record is
// non-deleted for that path.
func FilesToUnlink(removed, kept []*Manifest) []*File {
	keptView := Consolidate(kept)
	keptPaths := make(map[string]bool, len(keptView))
	for _, f := range keptView {
		if f.Present() {
			keptPaths[f.Path] = true
		}
	}

	removedView := Consolidate(removed)
	var out []*File
	for _, f := range removedView {
		if !f.Present() {
			continue
		}
		if keptPaths[f.Path] {
			continue
		}
		out = append(out, f)
	}
	return out
}
