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
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// BundleInfo is the read-only, queryable view of one bundle entry from a
// MoM, used by the bundle-list/bundle-info front-end commands.
type BundleInfo struct {
	Name       string
	Version    uint32
	Installed  bool
	FileCount  int
	ContentSize uint64
}

// bundleInfoEnv is the cel-go environment a bundle-list --filter expression
// is compiled against: the declared variables are exactly BundleInfo's
// fields, in snake_case.
func bundleInfoEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("version", cel.UintType),
		cel.Variable("installed", cel.BoolType),
		cel.Variable("file_count", cel.IntType),
		cel.Variable("content_size", cel.UintType),
	)
}

// BundleFilter is a compiled --filter expression (§ SUPPLEMENTED FEATURES
// bundle-list).
type BundleFilter struct {
	program cel.Program
}

// CompileBundleFilter parses and type-checks expr against the BundleInfo
// schema.
func CompileBundleFilter(expr string) (*BundleFilter, error) {
	env, err := bundleInfoEnv()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't build filter environment")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter expression %q", expr)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't build filter program")
	}
	return &BundleFilter{program: prg}, nil
}

// Matches evaluates the compiled filter against one BundleInfo.
func (f *BundleFilter) Matches(info BundleInfo) (bool, error) {
	out, _, err := f.program.Eval(map[string]interface{}{
		"name":         info.Name,
		"version":      uint64(info.Version),
		"installed":    info.Installed,
		"file_count":   info.FileCount,
		"content_size": info.ContentSize,
	})
	if err != nil {
		return false, errors.Wrap(err, "couldn't evaluate filter")
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("filter expression did not evaluate to a boolean")
	}
	return matched, nil
}

// BundleInfoFromMoM builds the queryable view for every bundle in mom,
// marking each as installed according to tracking.
func BundleInfoFromMoM(mom *MoM, tracking *TrackingStore) []BundleInfo {
	out := make([]BundleInfo, 0, len(mom.Files))
	for _, ref := range mom.Files {
		if !ref.Present() {
			continue
		}
		out = append(out, BundleInfo{
			Name:      ref.Path,
			Version:   ref.LastChange,
			Installed: tracking.IsTracked(ref.Path),
		})
	}
	return out
}

// FilterBundles applies filter to infos, returning the matching subset in
// the same order.
func FilterBundles(infos []BundleInfo, filter *BundleFilter) ([]BundleInfo, error) {
	if filter == nil {
		return infos, nil
	}
	var out []BundleInfo
	for _, info := range infos {
		ok, err := filter.Matches(info)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, info)
		}
	}
	return out, nil
}
