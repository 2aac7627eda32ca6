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

// Package config loads the client-facing swupd configuration file, the
// handful of settings a front-end needs before it can build a swupd.Context:
// where the target tree and state directory are, and where content comes
// from. Everything else is a per-invocation flag, not persistent config.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-client/swupd"
)

// DefaultPath is where the client config lives unless overridden.
const DefaultPath = "/etc/swupd/config.toml"

// Config is the parsed content of config.toml.
type Config struct {
	Prefix      string `toml:"prefix"`
	StateDir    string `toml:"state_dir"`
	ContentURL  string `toml:"content_url"`
	CacheDir    string `toml:"cache_dir"`
	Format      uint   `toml:"format"`
	MaxDownload int    `toml:"max_concurrent_downloads"`
}

// defaults mirror the values the reference client ships with, so an
// installation with no config.toml at all still behaves sensibly.
func defaults() Config {
	return Config{
		Prefix:      "/",
		StateDir:    "/var/lib/swupd",
		ContentURL:  "https://cdn.download.clearlinux.org/update",
		MaxDownload: 4,
	}
}

// Load reads path (DefaultPath if empty), folding parsed values over the
// defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = DefaultPath
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "couldn't parse %s", path)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.StateDir, "cache")
	}
	return cfg, nil
}

// Paths builds the swupd.Paths value this config describes.
func (c Config) Paths() swupd.Paths {
	return swupd.Paths{Prefix: c.Prefix, StateDir: c.StateDir}
}
