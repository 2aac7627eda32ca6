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

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

// MixConfig is the parsed content of <state>/mix.ini, the local overlay a
// system builder drops in to have the Manifest Store prefer locally
// authored manifests over the ones the upstream Fetcher would otherwise
// return (§4.1, Glossary "Mix").
type MixConfig struct {
	Enabled     bool
	ManifestDir string
}

// LoadMixConfig reads <stateDir>/mix.ini, if present. A missing file is not
// an error: it just means mixing is disabled, which is the common case.
func LoadMixConfig(stateDir string) (MixConfig, error) {
	path := filepath.Join(stateDir, "mix.ini")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return MixConfig{}, nil
	}

	cfg, err := ini.InsensitiveLoad(path)
	if err != nil {
		return MixConfig{}, errors.Wrapf(err, "couldn't parse %s", path)
	}

	mix := MixConfig{}
	section := cfg.Section("Mix")
	if key, err := section.GetKey("enabled"); err == nil {
		mix.Enabled = key.MustBool(false)
	}
	if key, err := section.GetKey("manifestdir"); err == nil {
		mix.ManifestDir = key.Value()
	}
	if mix.ManifestDir == "" {
		mix.ManifestDir = filepath.Join(stateDir, "mix", "manifests")
	}
	return mix, nil
}

// Apply folds mix into ctx, returning the updated Context.
func (mix MixConfig) Apply(ctx Context) Context {
	ctx.MixEnabled = mix.Enabled
	ctx.MixManifestDir = mix.ManifestDir
	return ctx
}
