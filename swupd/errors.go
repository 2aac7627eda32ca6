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

import "fmt"

// ExitCode is the exit-code taxonomy of §6/§7. Zero is success.
type ExitCode int

// The exit codes an operation can resolve to. Their numeric order is not a
// priority: the order used to pick a single code out of several per-bundle
// faults (§7), RequiredBundle > InvalidBundle > BundleNotTracked, is
// faultSeverity below.
const (
	OK ExitCode = iota
	CurrentVersionUnknown
	CouldntLoadMoM
	CouldntLoadManifest
	RecurseManifest
	InvalidBundle
	BundleNotTracked
	RequiredBundleError
	DiskSpaceError
	CouldntRemoveFile
	CouldntUpdateFile
)

func (c ExitCode) String() string {
	switch c {
	case OK:
		return "OK"
	case CurrentVersionUnknown:
		return "CurrentVersionUnknown"
	case CouldntLoadMoM:
		return "CouldntLoadMoM"
	case CouldntLoadManifest:
		return "CouldntLoadManifest"
	case RecurseManifest:
		return "RecurseManifest"
	case InvalidBundle:
		return "InvalidBundle"
	case BundleNotTracked:
		return "BundleNotTracked"
	case RequiredBundleError:
		return "RequiredBundleError"
	case DiskSpaceError:
		return "DiskSpaceError"
	case CouldntRemoveFile:
		return "CouldntRemoveFile"
	case CouldntUpdateFile:
		return "CouldntUpdateFile"
	default:
		return fmt.Sprintf("ExitCode(%d)", int(c))
	}
}

// faultSeverity orders per-bundle faults for the "most severe wins" policy
// of §7. Higher is more severe.
var faultSeverity = map[ExitCode]int{
	BundleNotTracked:    1,
	InvalidBundle:       2,
	RequiredBundleError: 3,
}

// Fault is a classified error as defined in §7: it carries the ExitCode the
// operation should resolve to along with the bundle it concerns (empty for
// global faults) and the underlying cause.
type Fault struct {
	Code   ExitCode
	Bundle string
	Err    error
}

func (f *Fault) Error() string {
	if f.Bundle == "" {
		return fmt.Sprintf("%s: %v", f.Code, f.Err)
	}
	return fmt.Sprintf("%s (%s): %v", f.Code, f.Bundle, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func newFault(code ExitCode, bundle string, err error) *Fault {
	return &Fault{Code: code, Bundle: bundle, Err: err}
}

// NewFault builds a Fault, for front-ends that need to raise one of the
// core's exit codes from outside the package (e.g. a failure to determine
// the currently installed version before any core operation can start).
func NewFault(code ExitCode, bundle string, err error) *Fault {
	return newFault(code, bundle, err)
}

// NewCurrentVersionUnknownFault wraps err as a CurrentVersionUnknown
// Fault, raised when the front-end cannot determine which version is
// currently installed.
func NewCurrentVersionUnknownFault(err error) *Fault {
	return newFault(CurrentVersionUnknown, "", err)
}

// mostSevere picks the single ExitCode to report for a batch of per-bundle
// faults, per the priority order in §7. A code outside faultSeverity (a
// global fault like DiskSpaceError, say) still becomes best if nothing
// ranked has been seen yet, so the result is never silently OK just because
// none of the faults happen to be one of the three ranked bundle codes.
// Returns OK if faults is empty.
func mostSevere(faults []*Fault) ExitCode {
	best := OK
	bestRank := -1
	for _, f := range faults {
		rank, ok := faultSeverity[f.Code]
		if !ok {
			if best == OK {
				best = f.Code
			}
			continue
		}
		if rank > bestRank {
			bestRank = rank
			best = f.Code
		}
	}
	return best
}

// MostSevere exposes mostSevere to front-ends that need to pick a single
// process exit code out of a batch of per-operation faults (§7).
func MostSevere(faults []*Fault) ExitCode {
	return mostSevere(faults)
}
