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
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

const manifestFieldDelim = "\t"

// SupportedManifestFormat is the manifest format this client understands.
// The upstream project bumps this number when the wire format gains a
// breaking change (new manifest directives, new flag bytes); a client that
// doesn't recognize the bump must refuse to consume the manifest rather than
// silently mis-parse it (§4.1).
const SupportedManifestFormat = 1

// ManifestHeader is the metadata block of a Manifest (§3).
type ManifestHeader struct {
	Format         uint
	Version        uint32
	Previous       uint32
	FileCount      uint32
	TimeStamp      time.Time
	ContentSize    uint64
	Component      string
	IsExperimental bool
	Includes       []string
	Optional       []string
}

// Manifest is the parsed bundle description: version, component name, file
// records, include lists, flags (§3/§4.1).
type Manifest struct {
	Header ManifestHeader
	Files  []*File
}

// Component is a convenience accessor for the bundle name.
func (m *Manifest) Component() string { return m.Header.Component }

// MoM is a Manifest whose Files entries are references (TypeManifest
// records) to per-bundle manifests: Path is the component name, Hash and
// LastChange identify which per-bundle Manifest to load.
type MoM struct {
	Manifest
}

// Bundle looks up one bundle's reference entry in the MoM by name.
func (m *MoM) Bundle(name string) (*File, bool) {
	for _, f := range m.Files {
		if f.Path == name {
			return f, true
		}
	}
	return nil, false
}

var requiredHeaderFields = []string{
	"MANIFEST", "version:", "previous:", "filecount:", "timestamp:", "contentsize:", "component:",
}

func readHeaderLine(fields []string, h *ManifestHeader) error {
	if len(fields) < 2 {
		return fmt.Errorf("invalid manifest header line: %q", strings.Join(fields, manifestFieldDelim))
	}
	switch fields[0] {
	case "MANIFEST":
		v, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return errors.Wrap(err, "invalid manifest format")
		}
		h.Format = uint(v)
	case "version:":
		v, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid version")
		}
		h.Version = uint32(v)
	case "previous:":
		v, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid previous version")
		}
		h.Previous = uint32(v)
	case "filecount:":
		v, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid filecount")
		}
		h.FileCount = uint32(v)
	case "timestamp:":
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid timestamp")
		}
		h.TimeStamp = time.Unix(v, 0).UTC()
	case "contentsize:":
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid contentsize")
		}
		h.ContentSize = v
	case "component:":
		h.Component = fields[1]
	case "experimental:":
		h.IsExperimental = fields[1] == "1"
	case "includes:":
		h.Includes = append(h.Includes, fields[1])
	case "optional:":
		h.Optional = append(h.Optional, fields[1])
	}
	return nil
}

func readFileLine(fields []string) (*File, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("invalid file entry, expected 4 fields got %d", len(fields))
	}
	typ, flags, err := parseFlagField(fields[0])
	if err != nil {
		return nil, err
	}
	hash, err := ParseHash(fields[1])
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "invalid last_change")
	}
	return &File{
		Path:       fields[3],
		Hash:       hash,
		Type:       typ,
		Flags:      flags,
		LastChange: uint32(v),
	}, nil
}

// CheckHeaderIsValid verifies the header fields carry values a consumer can
// trust before the body is interpreted.
func (m *Manifest) CheckHeaderIsValid() error {
	h := m.Header
	if h.Format == 0 {
		return errors.New("manifest format not set")
	}
	if h.Version == 0 {
		return errors.New("manifest has version zero, version must be positive")
	}
	if h.Version < h.Previous {
		return errors.New("version is smaller than previous")
	}
	if h.Component == "" {
		return errors.New("manifest has no component name")
	}
	if h.TimeStamp.IsZero() {
		return errors.New("manifest timestamp not set")
	}
	return nil
}

// ParseManifest parses a Manifest (or MoM) from the tab-delimited wire
// format described by §3/§4.1.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	scanner := bufio.NewScanner(r)

	seen := make(map[string]int)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		fields := strings.Split(line, manifestFieldDelim)
		key := fields[0]
		if key != "includes:" && key != "optional:" && seen[key] > 0 {
			return nil, fmt.Errorf("invalid manifest, duplicate header entry %q", key)
		}
		seen[key]++
		if err := readHeaderLine(fields, &m.Header); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, req := range requiredHeaderFields {
		if seen[req] == 0 {
			return nil, fmt.Errorf("invalid manifest, missing header entry %q", req)
		}
	}
	if err := m.CheckHeaderIsValid(); err != nil {
		return nil, err
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			return nil, errors.New("invalid manifest, extra blank line in body")
		}
		f, err := readFileLine(strings.Split(line, manifestFieldDelim))
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	m.sortFilesByPath()
	return m, nil
}

// ParseManifestFile reads and parses a Manifest from a file on disk.
func ParseManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't parse manifest %s", path)
	}
	return m, nil
}

var manifestTemplate = template.Must(template.New("manifest").Parse(
	`{{- with .Header -}}
MANIFEST	{{.Format}}
version:	{{.Version}}
previous:	{{.Previous}}
filecount:	{{.FileCount}}
timestamp:	{{.TimeStamp.Unix}}
contentsize:	{{.ContentSize}}
component:	{{.Component}}
{{- if .IsExperimental}}
experimental:	1
{{- end}}
{{- range .Includes}}
includes:	{{.}}
{{- end}}
{{- range .Optional}}
optional:	{{.}}
{{- end}}
{{- end}}

{{range .Files}}{{.}}
{{end}}`))

// fileLine renders one body line for File f.
func (f *File) fileLine() string {
	return fmt.Sprintf("%s\t%s\t%d\t%s", f.flagField(), f.Hash, f.LastChange, f.Path)
}

// String implements fmt.Stringer so the manifest template can render files
// with a plain {{.}} action.
func (f *File) String() string { return f.fileLine() }

// WriteManifest serializes m in the wire format to w.
func (m *Manifest) WriteManifest(w io.Writer) error {
	if err := m.CheckHeaderIsValid(); err != nil {
		return err
	}
	return manifestTemplate.Execute(w, m)
}

// WriteManifestFile serializes m to a new file at path.
func (m *Manifest) WriteManifestFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := m.WriteManifest(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func (m *Manifest) sortFilesByPath() {
	sort.Slice(m.Files, func(i, j int) bool {
		return m.Files[i].Path < m.Files[j].Path
	})
}
