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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// osCoreBundle can never be removed: it is the bundle swupd itself lives
// in, and removing it would leave the system unable to update further.
const osCoreBundle = "os-core"

// Remover deletes tracked bundles and the files that become orphaned as a
// result (§4.6).
type Remover struct {
	ctx      Context
	store    *Store
	tracking *TrackingStore
}

// NewRemover builds a Remover bound to ctx, store, and tracking.
func NewRemover(ctx Context, store *Store, tracking *TrackingStore) *Remover {
	return &Remover{ctx: ctx.WithDefaults(), store: store, tracking: tracking}
}

// RemoveResult is the outcome of one Remove call.
type RemoveResult struct {
	Removed []string
	Faults  []*Fault
}

// Remove untracks names and deletes the files that no remaining tracked
// bundle still claims (§4.6). With ctx.Force, a bundle that other tracked
// bundles still require is pulled into the removal set along with those
// dependents instead of failing; without it, such a bundle is reported as
// a RequiredBundleError and left alone.
func (r *Remover) Remove(names []string, mom *MoM) RemoveResult {
	var result RemoveResult
	toRemove := make(map[string]bool)

	for _, name := range names {
		if name == osCoreBundle {
			result.Faults = append(result.Faults, newFault(RequiredBundleError, name,
				fmt.Errorf("%s may not be removed", osCoreBundle)))
			continue
		}
		if !r.tracking.IsTracked(name) {
			result.Faults = append(result.Faults, newFault(BundleNotTracked, name,
				fmt.Errorf("%s is not installed", name)))
			continue
		}
		if err := r.expand(name, mom, toRemove, &result); err != nil {
			continue
		}
	}

	if len(toRemove) == 0 {
		return result
	}

	tracked, err := r.tracking.TrackedNames()
	if err != nil {
		result.Faults = append(result.Faults, newFault(CouldntRemoveFile, "", err))
		return result
	}

	var removedManifests, keptManifests []*Manifest
	for _, name := range tracked {
		ref, ok := mom.Bundle(name)
		if !ok {
			continue
		}
		m, err := r.store.LoadManifest(name, ref.LastChange, mom)
		if err != nil {
			result.Faults = append(result.Faults, asFault(CouldntLoadManifest, name, err))
			continue
		}
		if toRemove[name] {
			removedManifests = append(removedManifests, m)
		} else {
			keptManifests = append(keptManifests, m)
		}
	}

	unlink := FilesToUnlink(removedManifests, keptManifests)
	if err := r.unlinkAll(unlink); err != nil {
		result.Faults = append(result.Faults, newFault(CouldntRemoveFile, "", err))
	}

	var removedNames []string
	for name := range toRemove {
		if err := r.tracking.Untrack(name); err != nil {
			result.Faults = append(result.Faults, newFault(CouldntRemoveFile, name, err))
			continue
		}
		removedNames = append(removedNames, name)
	}
	sort.Strings(removedNames)
	result.Removed = removedNames
	return result
}

// expand adds name, and with ctx.Force its reverse dependents, to toRemove.
func (r *Remover) expand(name string, mom *MoM, toRemove map[string]bool, result *RemoveResult) error {
	if toRemove[name] {
		return nil
	}

	excluded := map[string]bool{}
	for already := range toRemove {
		excluded[already] = true
	}
	tree, err := RequiredBy(name, mom, r.store, excluded)
	if err != nil {
		result.Faults = append(result.Faults, asFault(RecurseManifest, name, err))
		return err
	}

	dependents := trackedDependents(tree, r.tracking)
	if len(dependents) > 0 && !r.ctx.Force {
		result.Faults = append(result.Faults, newFault(RequiredBundleError, name,
			fmt.Errorf("%s is required by: %v (use force to remove anyway)", name, dependents)))
		return fmt.Errorf("required by dependents")
	}

	toRemove[name] = true
	for _, dep := range dependents {
		if err := r.expand(dep, mom, toRemove, result); err != nil {
			return err
		}
	}
	return nil
}

func trackedDependents(tree *RequiredByNode, tracking *TrackingStore) []string {
	var out []string
	var walk func(n *RequiredByNode)
	walk = func(n *RequiredByNode) {
		for _, child := range n.Children {
			if tracking.IsTracked(child.Component) {
				out = append(out, child.Component)
			}
			walk(child)
		}
	}
	walk(tree)
	sort.Strings(out)
	return out
}

// unlinkAll removes every file in files from the target tree. Directories
// are removed only if they end up empty; a non-empty directory is left in
// place since some other retained bundle's file may still live under it.
func (r *Remover) unlinkAll(files []*File) error {
	sort.Slice(files, func(i, j int) bool { return len(files[i].Path) > len(files[j].Path) })

	var firstErr error
	for _, f := range files {
		target := filepath.Join(r.ctx.Paths.Prefix, f.Path)
		var err error
		if f.Type == TypeDirectory {
			err = os.Remove(target)
			if err != nil && isDirNotEmpty(err) {
				err = nil
			}
		} else {
			err = os.Remove(target)
			if os.IsNotExist(err) {
				err = nil
			}
		}
		if err != nil && firstErr == nil {
			firstErr = pkgerrors.Wrapf(err, "couldn't remove %s", f.Path)
		}
	}
	return firstErr
}

func isDirNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY)
}
