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

// Package digest implements the swupd.Digest collaborator: hashing
// on-disk content into the fixed-width identity the manifest body and the
// staged-file pool key off of.
package digest

import (
	"crypto/sha256"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-client/swupd"
)

// FileDigest computes content hashes the way the reference swupd hash
// does for the purposes of this client: a symlink hashes its link target
// string, a directory hashes its own path (directories carry no content
// of their own), and a regular file hashes its bytes. Ownership, mode,
// and similar metadata are intentionally excluded -- the client only ever
// needs to tell "is this the content the manifest names", not reproduce a
// byte-for-byte metadata fingerprint.
type FileDigest struct{}

// New returns a FileDigest, satisfying swupd.Digest.
func New() *FileDigest { return &FileDigest{} }

// Hash computes the content hash of path.
func (FileDigest) Hash(path string) (swupd.Hash, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return swupd.ZeroHash, errors.Wrapf(err, "couldn't stat %s", path)
	}

	h := sha256.New()
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, lerr := os.Readlink(path)
		if lerr != nil {
			return swupd.ZeroHash, errors.Wrapf(lerr, "couldn't read symlink %s", path)
		}
		_, _ = io.WriteString(h, target)
	case info.IsDir():
		_, _ = io.WriteString(h, path)
	default:
		f, ferr := os.Open(path)
		if ferr != nil {
			return swupd.ZeroHash, errors.Wrapf(ferr, "couldn't open %s", path)
		}
		_, cerr := io.Copy(h, f)
		_ = f.Close()
		if cerr != nil {
			return swupd.ZeroHash, errors.Wrapf(cerr, "couldn't read %s", path)
		}
	}

	var sum swupd.Hash
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// Verify reports whether path's content hash matches expected.
func (d FileDigest) Verify(path string, expected swupd.Hash) (bool, error) {
	got, err := d.Hash(path)
	if err != nil {
		return false, err
	}
	if got != expected {
		return false, nil
	}
	return true, nil
}
