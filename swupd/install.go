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
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const updateSuffix = ".update"

// Installer stages and places files into the target tree two phases at a
// time, so a crash between phases never leaves a file half-written (§4.5).
type Installer struct {
	ctx Context
}

// NewInstaller builds an Installer bound to ctx.
func NewInstaller(ctx Context) *Installer {
	return &Installer{ctx: ctx.WithDefaults()}
}

// Install places every file in files into the target tree, skipping
// records that are flagged do-not-update, ignored-by-update, or deleted
// (those are the Remover's concern). It reports Begin/Step/End on
// ctx.Progress and returns one Fault per file that could not be staged or
// placed; a partial failure does not stop the remaining files from being
// attempted.
//
// The plan runs in two strict passes over files, per §4.5/§8 Invariant 7:
// every record is staged to its sidecar name (Phase A) before any sidecar
// is renamed into place (Phase B). A crash at any point during Phase A
// leaves every existing file and symlink in the target tree untouched (only
// directories and .update sidecars have been created); a crash during Phase B leaves some
// sidecars renamed and some not, which the next run's pre-flight staged-pool
// check and a subsequent Install call resolve, rather than leaving a file
// half-written.
func (in *Installer) Install(files []*File) []*Fault {
	return in.run(files, false)
}

// StageOnly runs Phase A only, leaving every record staged to its sidecar
// name without renaming anything into the target tree. It is the engine
// behind the --download-only front-end flag (SUPPLEMENTED FEATURES).
func (in *Installer) StageOnly(files []*File) []*Fault {
	return in.run(files, true)
}

func (in *Installer) run(files []*File, stageOnly bool) []*Fault {
	var faults []*Fault
	var toPlace []*File
	var target []string

	total := 0
	for _, f := range files {
		if in.shouldInstall(f) {
			total++
		}
	}
	steps := total
	if !stageOnly {
		steps *= 2
	}

	in.ctx.Progress.Begin("install", steps)
	done := 0

	// Phase A: stage every record before any record is placed.
	for _, f := range files {
		if !in.shouldInstall(f) {
			continue
		}
		tgt := filepath.Join(in.ctx.Paths.Prefix, f.Path)
		if err := in.stageOne(f, tgt); err != nil {
			faults = append(faults, asFault(CouldntUpdateFile, f.Path, err))
			done++
			in.ctx.Progress.Step(f.Path, done, steps)
			continue
		}
		toPlace = append(toPlace, f)
		target = append(target, tgt)
		done++
		in.ctx.Progress.Step(f.Path, done, steps)
	}

	if stageOnly {
		in.ctx.Progress.End()
		return faults
	}

	// Phase B: rename every staged record into place, fsyncing each
	// touched directory once after the whole pass completes.
	dirs := map[string]bool{}
	for i, f := range toPlace {
		tgt := target[i]
		if err := in.placeOne(f, tgt); err != nil {
			faults = append(faults, asFault(CouldntUpdateFile, f.Path, err))
		} else {
			dirs[filepath.Dir(tgt)] = true
		}
		done++
		in.ctx.Progress.Step(f.Path, done, steps)
	}
	for dir := range dirs {
		if err := fsyncDir(dir); err != nil {
			faults = append(faults, asFault(CouldntUpdateFile, dir, err))
		}
	}

	in.ctx.Progress.End()
	return faults
}

func (in *Installer) shouldInstall(f *File) bool {
	return f.Present() && !f.Flags.DoNotUpdate && !f.Flags.IgnoredByUpdate
}

// stageOne is Phase A for a single record: directories only need their
// place on disk to exist (there is nothing to rename later), while files
// and symlinks are staged to a sidecar next to target.
func (in *Installer) stageOne(f *File, target string) error {
	if f.Type == TypeDirectory {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if f.Type == TypeSymlink {
		return in.stageSymlink(f, target)
	}
	return in.stageRegularFile(f, target)
}

// placeOne is Phase B for a single record: a directory is already in place
// after stageOne, so there is nothing left to do; a file or symlink's
// sidecar is renamed over target, a same-filesystem atomic swap.
func (in *Installer) placeOne(f *File, target string) error {
	if f.Type == TypeDirectory {
		return nil
	}
	sidecar := target + updateSuffix
	if err := os.Rename(sidecar, target); err != nil {
		_ = os.Remove(sidecar)
		return errors.Wrapf(err, "couldn't place %s", f.Path)
	}
	return nil
}

// stageRegularFile verifies the staged blob's content hash, then copies it
// to the sidecar name next to target (Phase A only -- no rename).
func (in *Installer) stageRegularFile(f *File, target string) error {
	staged := filepath.Join(in.ctx.Paths.staged(), f.Hash.String())

	if in.ctx.Digest != nil {
		ok, err := in.ctx.Digest.Verify(staged, f.Hash)
		if err != nil {
			return errors.Wrapf(err, "couldn't verify staged content for %s", f.Path)
		}
		if !ok {
			return fmt.Errorf("staged content for %s does not match manifest hash", f.Path)
		}
	}

	sidecar := target + updateSuffix
	if err := copyFilePreservingMode(staged, sidecar); err != nil {
		return errors.Wrapf(err, "couldn't stage %s", f.Path)
	}
	return nil
}

func (in *Installer) stageSymlink(f *File, target string) error {
	staged := filepath.Join(in.ctx.Paths.staged(), f.Hash.String())
	linkTarget, err := os.Readlink(staged)
	if err != nil {
		return errors.Wrapf(err, "couldn't read staged symlink for %s", f.Path)
	}

	sidecar := target + updateSuffix
	_ = os.Remove(sidecar)
	if err := os.Symlink(linkTarget, sidecar); err != nil {
		return errors.Wrapf(err, "couldn't stage symlink %s", f.Path)
	}
	return nil
}

// RepairPath re-installs a single path by consulting the consolidated view,
// used when a pre-flight hash check (outside this package) finds an
// on-disk file that no longer matches what the bundle set expects. A
// single file trivially satisfies the stage-before-place ordering, so
// stageOne and placeOne can run back to back here without a second pass.
func (in *Installer) RepairPath(path string, consolidated []*File) error {
	for _, f := range consolidated {
		if f.Path != path {
			continue
		}
		target := filepath.Join(in.ctx.Paths.Prefix, f.Path)
		if err := in.stageOne(f, target); err != nil {
			return err
		}
		if err := in.placeOne(f, target); err != nil {
			return err
		}
		if f.Type == TypeDirectory {
			return nil
		}
		return fsyncDir(filepath.Dir(target))
	}
	return fmt.Errorf("path %q not present in consolidated file set", path)
}

// VerifyStagedPool is the §4.5 pre-flight check: for every blob already
// present in the staged pool, its filename is parsed back to a Hash and the
// content is re-verified against it. A mismatch means the blob was
// corrupted or truncated by a previous interrupted run, so it is unlinked
// to force the fetcher to re-download it before Phase A begins. Runs
// before any install, so it must tolerate a staged directory that does not
// exist yet.
func (in *Installer) VerifyStagedPool() error {
	if in.ctx.Digest == nil {
		return nil
	}
	entries, err := os.ReadDir(in.ctx.Paths.staged())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "couldn't list staged pool")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		hash, err := ParseHash(entry.Name())
		if err != nil {
			continue
		}
		path := filepath.Join(in.ctx.Paths.staged(), entry.Name())
		ok, err := in.ctx.Digest.Verify(path, hash)
		if err != nil {
			return errors.Wrapf(err, "couldn't verify staged blob %s", entry.Name())
		}
		if !ok {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "couldn't unlink corrupt staged blob %s", entry.Name())
			}
		}
	}
	return nil
}

func copyFilePreservingMode(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	_ = os.Remove(dst)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}

func asFault(code ExitCode, bundle string, err error) *Fault {
	if f, ok := err.(*Fault); ok {
		return f
	}
	return newFault(code, bundle, err)
}
