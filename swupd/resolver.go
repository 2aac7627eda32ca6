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

// AddResult is the structured outcome of a forward resolution pass (§4.2,
// Design Notes §9): rather than a bitmask, callers get the set of
// newly-subscribed components, the names that weren't found in the MoM, and
// any Faults raised while walking the graph.
type AddResult struct {
	New      []string
	BadNames []string
	Faults   []*Fault
}

// HasErrors reports whether any bad names or faults were recorded.
func (r AddResult) HasErrors() bool {
	return len(r.BadNames) > 0 || len(r.Faults) > 0
}

// AddSubscriptions resolves names against mom and adds a Subscription for
// each one found, then recursively walks "includes:" (always) and
// "optional:" (only when ctx.FindAll is set) to bring in the full forward
// dependency closure (§4.2). A name already present in subs is not
// re-walked, which is what keeps this terminating in the presence of the
// (disallowed but not validated-against) cyclic manifest.
func AddSubscriptions(names []string, subs *SubscriptionSet, store *Store, mom *MoM, ctx Context) AddResult {
	var result AddResult
	for _, name := range names {
		addOne(name, subs, store, mom, ctx, &result, true)
	}
	sort.Strings(result.New)
	sort.Strings(result.BadNames)
	return result
}

func addOne(name string, subs *SubscriptionSet, store *Store, mom *MoM, ctx Context, result *AddResult, explicit bool) {
	if subs.Contains(name) {
		return
	}

	ref, ok := mom.Bundle(name)
	if !ok {
		result.BadNames = append(result.BadNames, name)
		result.Faults = append(result.Faults, newFault(InvalidBundle, name, errBundleNotInMoM(name)))
		return
	}
	if !explicit && ctx.SkipOptionalBundles {
		return
	}

	subs.Add(name, ref.LastChange)
	result.New = append(result.New, name)

	m, err := store.LoadManifest(name, ref.LastChange, mom)
	if err != nil {
		if f, isFault := err.(*Fault); isFault {
			result.Faults = append(result.Faults, f)
		} else {
			result.Faults = append(result.Faults, newFault(CouldntLoadManifest, name, err))
		}
		return
	}

	for _, inc := range m.Header.Includes {
		addOne(inc, subs, store, mom, ctx, result, true)
	}
	if ctx.FindAll {
		for _, opt := range m.Header.Optional {
			addOne(opt, subs, store, mom, ctx, result, false)
		}
	}
}

func errBundleNotInMoM(name string) error {
	return &bundleNotFoundError{name: name}
}

type bundleNotFoundError struct{ name string }

func (e *bundleNotFoundError) Error() string { return "bundle \"" + e.name + "\" not found" }

// RequiredByNode is one node of the reverse-dependency tree produced by
// RequiredBy (§4.2): Component is a bundle that (directly, for a non-root
// node) requires its parent, and Optional marks whether that edge came
// from an "optional:" reference rather than "includes:".
type RequiredByNode struct {
	Component string
	Optional  bool
	Children  []*RequiredByNode
}

// RequiredBy builds the reverse-dependency tree for target: every bundle
// (other than the ones in excluded) whose Manifest includes or
// optionally-includes target, recursively. A component is placed into the
// tree at most once across the whole call, even if multiple bundles
// require it (§4.2, "dedup at the outermost call").
func RequiredBy(target string, mom *MoM, store *Store, excluded map[string]bool) (*RequiredByNode, error) {
	manifests, err := loadAllBundleManifests(mom, store, excluded)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{target: true}
	root := &RequiredByNode{Component: target}
	root.Children = requirersOf(target, manifests, excluded, seen)
	return root, nil
}

func loadAllBundleManifests(mom *MoM, store *Store, excluded map[string]bool) (map[string]*Manifest, error) {
	out := make(map[string]*Manifest, len(mom.Files))
	for _, ref := range mom.Files {
		if excluded[ref.Path] || !ref.Present() {
			continue
		}
		m, err := store.LoadManifest(ref.Path, ref.LastChange, mom)
		if err != nil {
			return nil, err
		}
		out[ref.Path] = m
	}
	return out, nil
}

func requirersOf(target string, manifests map[string]*Manifest, excluded map[string]bool, seen map[string]bool) []*RequiredByNode {
	var children []*RequiredByNode
	var names []string
	for name := range manifests {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if excluded[name] || seen[name] {
			continue
		}
		m := manifests[name]
		optional := false
		found := false
		for _, inc := range m.Header.Includes {
			if inc == target {
				found = true
				break
			}
		}
		if !found {
			for _, opt := range m.Header.Optional {
				if opt == target {
					found = true
					optional = true
					break
				}
			}
		}
		if !found {
			continue
		}

		seen[name] = true
		node := &RequiredByNode{Component: name, Optional: optional}
		node.Children = requirersOf(name, manifests, excluded, seen)
		children = append(children, node)
	}
	return children
}
