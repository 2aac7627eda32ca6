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
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// Store loads, caches, and recursively expands manifests from the Fetcher
// (§4.1). A component at a given version is immutable and content
// addressed, so the Store never revalidates the same (component, version)
// pair twice.
type Store struct {
	ctx   Context
	cache map[uint64]*Manifest
}

// NewStore creates an empty Manifest Store bound to ctx.
func NewStore(ctx Context) *Store {
	return &Store{ctx: ctx.WithDefaults(), cache: make(map[uint64]*Manifest)}
}

// cacheKey hashes the (component, version) pair with a fast,
// non-cryptographic digest so repeated lookups against the in-memory table
// don't pay string-comparison/allocation cost on every call -- a separate
// concern from the sha256 check of fetched manifest bytes against the
// MoM-declared hash, performed once per fetch in LoadManifest.
func cacheKey(component string, version uint32) uint64 {
	return xxh3.HashString(fmt.Sprintf("%s@%d", component, version))
}

// LoadMoM loads the Manifest-of-Manifests for version. When mixEnabled, a
// locally-authored MoM overlay is preferred if present; otherwise the
// upstream MoM is used (§4.1, Glossary "Mix").
func (s *Store) LoadMoM(version uint32) (*MoM, error) {
	key := cacheKey("MoM", version)
	if m, ok := s.cache[key]; ok {
		return &MoM{Manifest: *m}, nil
	}

	raw, err := s.fetchMoM(version)
	if err != nil {
		return nil, newFault(CouldntLoadMoM, "", errors.Wrapf(err, "couldn't load MoM for version %d", version))
	}

	m, err := ParseManifest(bytes.NewReader(raw))
	if err != nil {
		return nil, newFault(CouldntLoadMoM, "", errors.Wrap(err, "couldn't parse MoM"))
	}
	if m.Header.Format != SupportedManifestFormat {
		return nil, newFault(CouldntLoadMoM, "",
			fmt.Errorf("MoM for version %d is format %d, this client understands format %d",
				version, m.Header.Format, SupportedManifestFormat))
	}

	s.cache[key] = m
	return &MoM{Manifest: *m}, nil
}

func (s *Store) fetchMoM(version uint32) ([]byte, error) {
	if s.ctx.MixEnabled && s.ctx.MixManifestDir != "" {
		path := joinPath(s.ctx.MixManifestDir, fmt.Sprint(version), "Manifest.MoM")
		if b, err := os.ReadFile(path); err == nil {
			return b, nil
		}
	}
	return s.ctx.Fetcher.Fetch(KindMoM, version, "MoM")
}

// LoadManifest loads the per-bundle Manifest for component at version. The
// caller supplies the parent MoM so the declared hash of the loaded
// manifest can be checked against the hash recorded for that bundle in the
// MoM; a mismatch is a CouldntLoadManifest fault (§4.1).
func (s *Store) LoadManifest(component string, version uint32, parentMoM *MoM) (*Manifest, error) {
	key := cacheKey(component, version)
	if m, ok := s.cache[key]; ok {
		return m, nil
	}

	raw, err := s.fetchManifest(component, version)
	if err != nil {
		return nil, newFault(CouldntLoadManifest, component, errors.Wrapf(err, "couldn't fetch manifest for %s", component))
	}

	m, err := ParseManifest(bytes.NewReader(raw))
	if err != nil {
		return nil, newFault(CouldntLoadManifest, component, errors.Wrapf(err, "couldn't parse manifest for %s", component))
	}
	if m.Header.Format != SupportedManifestFormat {
		return nil, newFault(CouldntLoadManifest, component,
			fmt.Errorf("manifest for %s at version %d is format %d, this client understands format %d",
				component, version, m.Header.Format, SupportedManifestFormat))
	}
	if parentMoM != nil && m.Header.Format != parentMoM.Header.Format {
		return nil, newFault(CouldntLoadManifest, component,
			fmt.Errorf("manifest for %s is format %d, but its MoM is format %d -- refusing to mix formats",
				component, m.Header.Format, parentMoM.Header.Format))
	}

	if parentMoM != nil {
		if ref, ok := parentMoM.Bundle(component); ok && !ref.Hash.IsZero() {
			if ref.Hash != computeContentHash(raw) {
				return nil, newFault(CouldntLoadManifest, component,
					fmt.Errorf("manifest hash mismatch for %s at version %d", component, version))
			}
		}
	}

	s.cache[key] = m
	return m, nil
}

func (s *Store) fetchManifest(component string, version uint32) ([]byte, error) {
	if s.ctx.MixEnabled && s.ctx.MixManifestDir != "" {
		path := joinPath(s.ctx.MixManifestDir, fmt.Sprint(version), "Manifest."+component)
		if b, err := os.ReadFile(path); err == nil {
			return b, nil
		}
	}
	return s.ctx.Fetcher.Fetch(KindBundleManifest, version, component)
}

// Recurse fetches the Manifest for every subscribed component, yielding the
// transitive set (§4.1).
func (s *Store) Recurse(mom *MoM, subs *SubscriptionSet) ([]*Manifest, error) {
	var out []*Manifest
	for _, name := range subs.Names() {
		sub := subs.subs[name]
		m, err := s.LoadManifest(name, sub.Version, mom)
		if err != nil {
			return nil, newFault(RecurseManifest, name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// computeContentHash derives the Hash identity of raw manifest bytes using
// the same fixed-width digest type as file content hashes, so MoM entries
// can pin a bundle manifest's hash without depending on a particular
// on-disk path. The core never computes content hashes for staged files --
// that is the Digest collaborator's job -- but a manifest's own identity is
// derived from bytes already in hand, not a path, so it is computed inline.
func computeContentHash(raw []byte) Hash {
	return Hash(sha256.Sum256(raw))
}
