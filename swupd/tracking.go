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

	"github.com/pkg/errors"
)

// momSentinel is the MoM's own entry in the system bundle directory; it is
// never a bundle name and must be skipped when seeding tracking records
// from that directory.
const momSentinel = ".MoM"

// TrackingStore records which bundles were manually installed, as opposed
// to pulled in only as another bundle's dependency (§4.7). Each tracked
// bundle is an empty marker file named after the component, readable only
// by the owner.
type TrackingStore struct {
	ctx Context
}

// NewTrackingStore builds a TrackingStore bound to ctx.
func NewTrackingStore(ctx Context) *TrackingStore {
	return &TrackingStore{ctx: ctx.WithDefaults()}
}

func (t *TrackingStore) path(name string) string {
	return filepath.Join(t.ctx.Paths.tracking(), name)
}

// IsTracked reports whether name has a tracking record.
func (t *TrackingStore) IsTracked(name string) bool {
	_, err := os.Stat(t.path(name))
	return err == nil
}

// Track creates a tracking record for name, if one doesn't already exist.
func (t *TrackingStore) Track(name string) error {
	if err := os.MkdirAll(t.ctx.Paths.tracking(), 0700); err != nil {
		return errors.Wrap(err, "couldn't create tracking directory")
	}
	f, err := os.OpenFile(t.path(name), os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.Wrapf(err, "couldn't track %s", name)
	}
	return f.Close()
}

// Untrack removes the tracking record for name, if any.
func (t *TrackingStore) Untrack(name string) error {
	err := os.Remove(t.path(name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "couldn't untrack %s", name)
	}
	return nil
}

// TrackedNames lists every bundle with a tracking record.
func (t *TrackingStore) TrackedNames() ([]string, error) {
	entries, err := os.ReadDir(t.ctx.Paths.tracking())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "couldn't list tracking directory")
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Seed bootstraps the tracking directory from the system bundle
// directory (§4.7): every name present there, other than the MoM
// sentinel, is recorded as manually installed. This runs once, the first
// time an operation discovers the tracking directory is empty/missing, so
// a system imaged without prior swupd bookkeeping does not look as though
// nothing is installed.
func (t *TrackingStore) Seed() error {
	entries, err := os.ReadDir(t.ctx.Paths.systemBundles())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "couldn't read system bundle directory")
	}
	for _, e := range entries {
		if e.Name() == momSentinel {
			continue
		}
		if err := t.Track(e.Name()); err != nil {
			return err
		}
	}
	return nil
}
