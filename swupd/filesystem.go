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
	"sort"
	"strings"
)

// DriftReport is the result of walking the target tree and comparing what
// is actually there against the consolidated file set a subscription set
// resolves to (SUPPLEMENTED FEATURES: "swupd diagnose").
type DriftReport struct {
	// Missing are paths the consolidated set expects but that are absent
	// from disk.
	Missing []string
	// Modified are paths present on disk whose content hash no longer
	// matches the consolidated set's record.
	Modified []string
	// Extra are paths present on disk under the managed tree that no
	// installed bundle's manifest claims.
	Extra []string
}

// Diagnose walks ctx.Paths.usr() and classifies every regular file and
// symlink it finds against consolidated, the expected file set for the
// currently tracked bundles. It never modifies the target tree; it only
// reports.
func Diagnose(ctx Context, consolidated []*File) (DriftReport, error) {
	expected := make(map[string]*File, len(consolidated))
	for _, f := range consolidated {
		if f.Present() {
			expected[f.Path] = f
		}
	}

	seen := make(map[string]bool, len(expected))
	var report DriftReport

	root := ctx.Paths.usr()
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel := "/" + strings.TrimPrefix(strings.TrimPrefix(path, ctx.Paths.Prefix), "/")
		f, ok := expected[rel]
		if !ok {
			report.Extra = append(report.Extra, rel)
			return nil
		}
		seen[rel] = true

		if ctx.Digest != nil {
			ok, verr := ctx.Digest.Verify(path, f.Hash)
			if verr != nil || !ok {
				report.Modified = append(report.Modified, rel)
			}
		}
		return nil
	})
	if walkErr != nil {
		return DriftReport{}, walkErr
	}

	for path := range expected {
		if !seen[path] {
			report.Missing = append(report.Missing, path)
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Modified)
	sort.Strings(report.Extra)
	return report, nil
}
