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

// FileType is the kind of filesystem object a File Record describes.
type FileType int

// The file types a manifest entry can carry. TypeDeleted marks a path that
// must not exist after reconciliation; it always carries a zero Hash.
// TypeManifest marks an entry in the MoM that is itself a reference to a
// per-bundle Manifest, keyed by Hash and LastChange.
const (
	TypeUnset FileType = iota
	TypeFile
	TypeDirectory
	TypeSymlink
	TypeDeleted
	TypeManifest
)

var typeFlagByte = map[FileType]byte{
	TypeUnset:     '.',
	TypeFile:      'F',
	TypeDirectory: 'D',
	TypeSymlink:   'L',
	TypeDeleted:   'd',
	TypeManifest:  'M',
}

func fileTypeFromFlag(b byte) (FileType, error) {
	for t, fb := range typeFlagByte {
		if fb == b {
			return t, nil
		}
	}
	return TypeUnset, fmt.Errorf("invalid file type flag: %q", b)
}

func (t FileType) String() string {
	if b, ok := typeFlagByte[t]; ok {
		return string(b)
	}
	return "?"
}

// Flags are independent boolean properties of a File Record. They are
// orthogonal to Type: a regular file can be DoNotUpdate, Experimental, and
// IgnoredByUpdate all at once.
type Flags struct {
	DoNotUpdate     bool
	Experimental    bool
	IgnoredByUpdate bool
}

func (f Flags) flagString() string {
	b := []byte{'.', '.', '.'}
	if f.DoNotUpdate {
		b[0] = 'n'
	}
	if f.Experimental {
		b[1] = 'e'
	}
	if f.IgnoredByUpdate {
		b[2] = 'i'
	}
	return string(b)
}

func flagsFromString(s string) (Flags, error) {
	if len(s) != 3 {
		return Flags{}, fmt.Errorf("invalid flag field: %q", s)
	}
	var f Flags
	switch s[0] {
	case 'n':
		f.DoNotUpdate = true
	case '.':
	default:
		return Flags{}, fmt.Errorf("invalid do-not-update flag: %q", s[0])
	}
	switch s[1] {
	case 'e':
		f.Experimental = true
	case '.':
	default:
		return Flags{}, fmt.Errorf("invalid experimental flag: %q", s[1])
	}
	switch s[2] {
	case 'i':
		f.IgnoredByUpdate = true
	case '.':
	default:
		return Flags{}, fmt.Errorf("invalid ignored-by-update flag: %q", s[2])
	}
	return f, nil
}

// File is a File Record: the immutable descriptor of one path in one
// manifest version (§3). Equality of Hash implies equality of content.
type File struct {
	Path       string
	Hash       Hash
	Type       FileType
	LastChange uint32
	Flags      Flags

	// Size is the file's content size in bytes, used by contentsize
	// accounting and Disk Admission. Zero for directories and symlinks.
	Size uint64
}

// Present reports whether the record describes something that should exist
// on disk after reconciliation.
func (f *File) Present() bool {
	return f.Type != TypeDeleted && f.Type != TypeUnset
}

// flagField renders the 4-character flag field used in the wire format:
// the type byte followed by the 3 independent Flags bytes.
func (f *File) flagField() string {
	return string(typeFlagByte[f.Type]) + f.Flags.flagString()
}

func parseFlagField(field string) (FileType, Flags, error) {
	if len(field) != 4 {
		return TypeUnset, Flags{}, fmt.Errorf("invalid flag field length: %q", field)
	}
	t, err := fileTypeFromFlag(field[0])
	if err != nil {
		return TypeUnset, Flags{}, err
	}
	fl, err := flagsFromString(field[1:])
	if err != nil {
		return TypeUnset, Flags{}, err
	}
	return t, fl, nil
}

// sameContent reports whether two records would result in the same bytes on
// disk, ignoring bookkeeping fields like LastChange.
func sameContent(a, b *File) bool {
	return a.Path == b.Path && a.Hash == b.Hash && a.Type == b.Type
}
