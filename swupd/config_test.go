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
	"testing"
)

func TestLoadMixConfigMissingFileDisablesMixing(t *testing.T) {
	mix, err := LoadMixConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadMixConfig: %v", err)
	}
	if mix.Enabled {
		t.Error("mixing should be disabled when mix.ini is absent")
	}
}

func TestLoadMixConfigReadsEnabledAndManifestDir(t *testing.T) {
	state := t.TempDir()
	content := "[Mix]\nenabled = true\nmanifestdir = /var/lib/mix/manifests\n"
	if err := os.WriteFile(filepath.Join(state, "mix.ini"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mix, err := LoadMixConfig(state)
	if err != nil {
		t.Fatalf("LoadMixConfig: %v", err)
	}
	if !mix.Enabled {
		t.Error("expected mixing to be enabled")
	}
	if mix.ManifestDir != "/var/lib/mix/manifests" {
		t.Errorf("ManifestDir = %q, want /var/lib/mix/manifests", mix.ManifestDir)
	}
}

func TestLoadMixConfigDefaultsManifestDir(t *testing.T) {
	state := t.TempDir()
	if err := os.WriteFile(filepath.Join(state, "mix.ini"), []byte("[Mix]\nenabled = true\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mix, err := LoadMixConfig(state)
	if err != nil {
		t.Fatalf("LoadMixConfig: %v", err)
	}
	want := filepath.Join(state, "mix", "manifests")
	if mix.ManifestDir != want {
		t.Errorf("ManifestDir = %q, want %q", mix.ManifestDir, want)
	}
}

func TestMixConfigApplyFoldsIntoContext(t *testing.T) {
	mix := MixConfig{Enabled: true, ManifestDir: "/srv/mix"}
	ctx := mix.Apply(Context{})
	if !ctx.MixEnabled || ctx.MixManifestDir != "/srv/mix" {
		t.Errorf("Apply produced %+v, want MixEnabled=true MixManifestDir=/srv/mix", ctx)
	}
}
