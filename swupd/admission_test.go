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
	"testing"
)

// These exercise CheckDiskSpace against the real filesystem backing a temp
// directory rather than a fake: statfs is a single syscall with no pack
// library wrapping it (see DESIGN.md), so there is nothing meaningful to
// mock short of the kernel itself.

func newAdmissionFixture(t *testing.T) Context {
	t.Helper()
	prefix := t.TempDir()
	if err := os.MkdirAll(prefix+"/usr", 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return Context{Paths: Paths{Prefix: prefix}}
}

func TestCheckDiskSpaceSucceedsForSmallRequest(t *testing.T) {
	ctx := newAdmissionFixture(t)
	if err := CheckDiskSpace(ctx, 1024); err != nil {
		t.Fatalf("CheckDiskSpace(1KiB) = %v, want nil", err)
	}
}

func TestCheckDiskSpaceFailsWhenRequestExceedsAvailable(t *testing.T) {
	ctx := newAdmissionFixture(t)
	// No real filesystem backing a test temp dir has an exabyte free; this
	// is intended to always exceed whatever's available.
	const absurd = 1 << 60
	err := CheckDiskSpace(ctx, absurd)
	if err == nil {
		t.Fatal("expected CheckDiskSpace to fail for an absurdly large request")
	}
	fault, ok := err.(*Fault)
	if !ok {
		t.Fatalf("err = %T, want *Fault", err)
	}
	if fault.Code != DiskSpaceError {
		t.Errorf("fault.Code = %v, want DiskSpaceError", fault.Code)
	}
}

func TestCheckDiskSpaceRejectsMissingTarget(t *testing.T) {
	ctx := Context{Paths: Paths{Prefix: "/nonexistent-path-for-admission-test"}}
	if err := CheckDiskSpace(ctx, 1); err == nil {
		t.Fatal("expected an error statting a nonexistent prefix")
	}
}
