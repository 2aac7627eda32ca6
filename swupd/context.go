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
	"github.com/benbjohnson/clock"
)

// Fetcher pulls a byte blob by (kind, version, identifier), per §6. The
// core never talks to the network directly.
type Fetcher interface {
	Fetch(kind Kind, version uint32, identifier string) ([]byte, error)
}

// Kind distinguishes the payload a Fetcher is asked to retrieve.
type Kind int

// The kinds of payload the Fetcher interface can be asked for.
const (
	KindMoM Kind = iota
	KindBundleManifest
	KindFullfile
	KindPack
)

// Digest computes and verifies content hashes (§6). The core treats a Hash
// as an opaque, comparable value; only the Digest collaborator knows how to
// derive one from bytes on disk.
type Digest interface {
	Hash(path string) (Hash, error)
	Verify(path string, expected Hash) (bool, error)
}

// Unpacker extracts an archive into a named output directory (§6).
type Unpacker interface {
	Unpack(archivePath, outputDir string) error
}

// TelemetryEmitter receives Telemetry records (§6). Implementations decide
// where they go (structured log, metrics, both, nowhere). No operation in
// this package or in cmd/swupd calls Emit; a Context only carries the
// emitter.
type TelemetryEmitter interface {
	Emit(Telemetry)
}

// ProgressReporter receives coarse progress callbacks from the Installer;
// the Remover does not report progress. All methods must tolerate being
// called zero times (e.g. a no-op reporter for scripted/CI use).
type ProgressReporter interface {
	Begin(operation string, total int)
	Step(path string, done, total int)
	End()
}

// noopProgress implements ProgressReporter by doing nothing.
type noopProgress struct{}

func (noopProgress) Begin(string, int)        {}
func (noopProgress) Step(string, int, int)    {}
func (noopProgress) End()                     {}

// Paths locates every directory the core reads from or writes to (§6). It
// replaces the reference implementation's process-wide configuration
// globals (Design Notes §9) with an explicit value threaded into every
// operation.
type Paths struct {
	// Prefix is the root of the target tree being reconciled, e.g. "/".
	Prefix string
	// StateDir is the root of swupd's own scratch/state area, e.g.
	// "/var/lib/swupd".
	StateDir string
}

func (p Paths) usr() string      { return joinPath(p.Prefix, "usr") }
func (p Paths) systemBundles() string {
	return joinPath(p.Prefix, "usr/share/clear/bundles")
}
func (p Paths) tracking() string  { return joinPath(p.StateDir, "bundles") }
func (p Paths) staged() string    { return joinPath(p.StateDir, "staged") }
func (p Paths) download() string  { return joinPath(p.StateDir, "download") }

func joinPath(elem ...string) string {
	out := ""
	for _, e := range elem {
		if e == "" {
			continue
		}
		if out == "" {
			out = e
			continue
		}
		out = out + "/" + trimSlash(e)
	}
	return out
}

func trimSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}

// Context is the explicit, per-invocation configuration and collaborator
// bundle threaded into every core operation (Design Notes §9). It is
// constructed once per invocation by the front-end; the core never keeps
// process-wide mutable state of its own.
type Context struct {
	Paths Paths

	Fetcher  Fetcher
	Digest   Digest
	Unpacker Unpacker
	Progress ProgressReporter
	Telemetry TelemetryEmitter

	// MixEnabled turns on the local-overlay lookup in the Manifest Store
	// (§4.1). Read from <state>/mix.ini by the front-end.
	MixEnabled bool
	// MixManifestDir, when MixEnabled, is consulted before the upstream
	// Fetcher for a given (component, version).
	MixManifestDir string

	// SkipDiskSpaceCheck lets an operator override Disk Admission (§4.4).
	SkipDiskSpaceCheck bool

	// Force allows the Remover to pull in reverse dependents (§4.6).
	Force bool

	// FindAll makes forward resolution also walk optional includes
	// (§4.2). It has no effect on already-installed bundles: forward
	// resolution never skips a bundle for being installed.
	FindAll bool

	// SkipOptionalBundles disables recursion into optional includes
	// during forward resolution only (§4.2, §9 open question).
	SkipOptionalBundles bool

	// Clock is an injectable time source, defaulted by WithDefaults. No
	// code in this package reads it.
	Clock clock.Clock
}

// WithDefaults fills in zero-value fields that must never be nil so core
// code can call them unconditionally.
func (c Context) WithDefaults() Context {
	if c.Progress == nil {
		c.Progress = noopProgress{}
	}
	if c.Telemetry == nil {
		c.Telemetry = noopTelemetry{}
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

type noopTelemetry struct{}

func (noopTelemetry) Emit(Telemetry) {}
