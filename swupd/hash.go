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
	"encoding/hex"
	"fmt"
)

// hashSize is the width, in bytes, of the content digest used for file
// identity and integrity checks (§3). The core never computes a Hash
// itself -- that's the Digest collaborator's job (§6) -- but it needs a
// fixed-width value type to carry one around, compare it, and put it in a
// map key.
const hashSize = 32

// Hash is a fixed-width content digest. Equality of Hash implies equality
// of content. The zero Hash is reserved for TypeDeleted records.
type Hash [hashSize]byte

// ZeroHash is the all-zero digest carried by deleted File Records.
var ZeroHash Hash

// String renders the hash as lowercase hex, the form used in the manifest
// wire format.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero digest.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// ParseHash parses the hex representation of a Hash as found in a manifest
// file entry.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != hashSize*2 {
		return h, fmt.Errorf("invalid hash length: %d", len(s))
	}
	n, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if n != hashSize {
		return h, fmt.Errorf("invalid hash %q: short decode", s)
	}
	return h, nil
}
