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
	"fmt"
	"syscall"
)

// diskSpaceFudgeFactor inflates the declared contentsize before comparing
// it against available space (§4.4): a Manifest's contentsize is the sum of
// final file sizes, but staging writes a second, temporary copy of every
// changed file alongside the one it replaces before the rename-into-place,
// so free space must cover more than just the net delta.
const diskSpaceFudgeFactor = 1.1

// CheckDiskSpace verifies that the filesystem backing ctx.Paths.usr() has
// room for contentSize bytes, inflated by diskSpaceFudgeFactor (§4.4). A
// caller with ctx.SkipDiskSpaceCheck set should not call this at all; it is
// the front-end's decision whether the override applies, not this
// function's.
func CheckDiskSpace(ctx Context, contentSize uint64) error {
	target := ctx.Paths.usr()

	var stat syscall.Statfs_t
	if err := syscall.Statfs(target, &stat); err != nil {
		return newFault(DiskSpaceError, "", fmt.Errorf("couldn't stat %s: %w", target, err))
	}

	available := stat.Bavail * uint64(stat.Bsize)
	required := uint64(float64(contentSize) * diskSpaceFudgeFactor)

	if available < required {
		return newFault(DiskSpaceError, "", fmt.Errorf(
			"not enough disk space on %s: need %d bytes, have %d", target, required, available))
	}
	return nil
}
