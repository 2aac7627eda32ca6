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

// Command swupd is the front-end CLI wiring the bundle-manager core
// (package swupd) to concrete collaborators: an HTTP/local fetcher, a
// content digest, an archive unpacker, structured telemetry, and a
// terminal progress bar.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clearlinux/swupd-client/config"
	"github.com/clearlinux/swupd-client/internal/digest"
	"github.com/clearlinux/swupd-client/internal/fetcher"
	"github.com/clearlinux/swupd-client/internal/progress"
	"github.com/clearlinux/swupd-client/internal/telemetry"
	"github.com/clearlinux/swupd-client/internal/unpacker"
	"github.com/clearlinux/swupd-client/swupd"
)

var (
	cfgPath string
	force   bool
	findAll bool
)

func main() {
	root := &cobra.Command{
		Use:   "swupd",
		Short: "Manage installed bundles against a content-addressed update stream",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.toml")
	root.PersistentFlags().BoolVar(&force, "force", false, "allow removing bundles other bundles still require")
	root.PersistentFlags().BoolVar(&findAll, "all", false, "recurse into optional bundles as well as required ones")

	root.AddCommand(installCmd(), removeCmd(), bundleListCmd(), bundleInfoCmd(), diagnoseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(exitCode(err))
	}
}

// exitCodeError carries the process exit code reportFaults picked for a
// batch of faults (§7), so main can surface it without reportFaults having
// to call os.Exit itself.
type exitCodeError struct {
	code swupd.ExitCode
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

// exitCode recovers the swupd.ExitCode behind err, whether it arrived as a
// bare Fault (e.g. currentVersion's CurrentVersionUnknown) or as the
// aggregated exitCodeError reportFaults returns. Anything else is an
// unclassified failure, reported as 1.
func exitCode(err error) int {
	var fault *swupd.Fault
	if errors.As(err, &fault) {
		return int(fault.Code)
	}
	var withCode *exitCodeError
	if errors.As(err, &withCode) {
		return int(withCode.code)
	}
	return 1
}

func buildContext() (swupd.Context, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return swupd.Context{}, err
	}

	mix, err := swupd.LoadMixConfig(cfg.StateDir)
	if err != nil {
		return swupd.Context{}, err
	}

	ctx := swupd.Context{
		Paths:     cfg.Paths(),
		Fetcher:   fetcher.New(cfg.ContentURL, cfg.CacheDir),
		Digest:    digest.New(),
		Unpacker:  unpacker.New(),
		Progress:  progress.New(),
		Telemetry: telemetry.New(os.Stderr),
		Force:     force,
		FindAll:   findAll,
	}
	ctx = mix.Apply(ctx)
	return ctx.WithDefaults(), nil
}

func mustTrackedNames(tracking *swupd.TrackingStore) []string {
	names, err := tracking.TrackedNames()
	if err != nil {
		return nil
	}
	return names
}

func currentVersion(ctx swupd.Context) (uint32, error) {
	raw, err := os.ReadFile(ctx.Paths.Prefix + "/usr/lib/swupd/version")
	if err != nil {
		return 0, swupd.NewCurrentVersionUnknownFault(err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 32)
	if err != nil {
		return 0, swupd.NewCurrentVersionUnknownFault(err)
	}
	return uint32(v), nil
}

func installCmd() *cobra.Command {
	var downloadOnly bool
	cmd := &cobra.Command{
		Use:   "bundle-add NAME...",
		Short: "Install one or more bundles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			ctx, err := buildContext()
			if err != nil {
				return err
			}
			version, err := currentVersion(ctx)
			if err != nil {
				return err
			}

			store := swupd.NewStore(ctx)
			mom, err := store.LoadMoM(version)
			if err != nil {
				return err
			}

			tracking := swupd.NewTrackingStore(ctx)
			trackedNames := mustTrackedNames(tracking)
			if len(trackedNames) == 0 {
				_ = tracking.Seed()
				trackedNames = mustTrackedNames(tracking)
			}

			subs := swupd.NewSubscriptionSet()
			for _, name := range trackedNames {
				if ref, ok := mom.Bundle(name); ok {
					subs.Add(name, ref.LastChange)
				}
			}

			result := swupd.AddSubscriptions(names, subs, store, mom, ctx)
			if result.HasErrors() {
				for _, bad := range result.BadNames {
					fmt.Fprintln(os.Stderr, color.RedString("bundle %q not found", bad))
				}
				return fmt.Errorf("couldn't resolve %d bundle(s)", len(result.BadNames))
			}

			manifests, err := store.Recurse(mom, subs)
			if err != nil {
				return err
			}
			consolidated := swupd.Consolidate(manifests)

			if !ctx.SkipDiskSpaceCheck {
				var toInstall uint64
				for _, m := range manifests {
					toInstall += m.Header.ContentSize
				}
				if err := swupd.CheckDiskSpace(ctx, toInstall); err != nil {
					return err
				}
			}

			installer := swupd.NewInstaller(ctx)
			if err := installer.VerifyStagedPool(); err != nil {
				return err
			}

			var faults []*swupd.Fault
			if downloadOnly {
				faults = installer.StageOnly(consolidated)
			} else {
				faults = installer.Install(consolidated)
				for _, name := range names {
					_ = tracking.Track(name)
				}
			}
			return reportFaults(faults)
		},
	}
	cmd.Flags().BoolVar(&downloadOnly, "download-only", false, "stage bundle content without placing it into the target tree")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundle-remove NAME...",
		Short: "Remove one or more bundles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			ctx, err := buildContext()
			if err != nil {
				return err
			}
			version, err := currentVersion(ctx)
			if err != nil {
				return err
			}

			store := swupd.NewStore(ctx)
			mom, err := store.LoadMoM(version)
			if err != nil {
				return err
			}
			tracking := swupd.NewTrackingStore(ctx)
			remover := swupd.NewRemover(ctx, store, tracking)

			result := remover.Remove(names, mom)
			fmt.Printf("removed %d bundle(s)\n", len(result.Removed))
			return reportFaults(result.Faults)
		},
	}
}

func bundleListCmd() *cobra.Command {
	var filterExpr string
	cmd := &cobra.Command{
		Use:   "bundle-list",
		Short: "List bundles, optionally filtered by a CEL expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := buildContext()
			if err != nil {
				return err
			}
			version, err := currentVersion(ctx)
			if err != nil {
				return err
			}
			store := swupd.NewStore(ctx)
			mom, err := store.LoadMoM(version)
			if err != nil {
				return err
			}
			tracking := swupd.NewTrackingStore(ctx)
			infos := swupd.BundleInfoFromMoM(mom, tracking)

			var filter *swupd.BundleFilter
			if filterExpr != "" {
				filter, err = swupd.CompileBundleFilter(filterExpr)
				if err != nil {
					return err
				}
			}
			infos, err = swupd.FilterBundles(infos, filter)
			if err != nil {
				return err
			}
			for _, info := range infos {
				marker := " "
				if info.Installed {
					marker = color.GreenString("*")
				}
				fmt.Printf("%s %s\n", marker, info.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filterExpr, "filter", "", "CEL expression over name/version/installed/file_count/content_size")
	return cmd
}

// bundleInfo is the --format=yaml rendering of bundle-info; the default,
// human-oriented rendering stays the plain key: value form below.
type bundleInfo struct {
	Name     string   `yaml:"name"`
	Version  uint32   `yaml:"version"`
	Files    int      `yaml:"files"`
	Includes []string `yaml:"includes,omitempty"`
	Optional []string `yaml:"optional,omitempty"`
}

func bundleInfoCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "bundle-info NAME",
		Short: "Show details about one bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := buildContext()
			if err != nil {
				return err
			}
			version, err := currentVersion(ctx)
			if err != nil {
				return err
			}
			store := swupd.NewStore(ctx)
			mom, err := store.LoadMoM(version)
			if err != nil {
				return err
			}
			ref, ok := mom.Bundle(args[0])
			if !ok {
				return fmt.Errorf("bundle %q not found", args[0])
			}
			m, err := store.LoadManifest(args[0], ref.LastChange, mom)
			if err != nil {
				return err
			}

			switch format {
			case "", "text":
				fmt.Printf("name: %s\nversion: %d\nfiles: %d\nincludes: %s\noptional: %s\n",
					m.Component(), m.Header.Version, len(m.Files),
					strings.Join(m.Header.Includes, ", "), strings.Join(m.Header.Optional, ", "))
			case "yaml":
				out, err := yaml.Marshal(bundleInfo{
					Name:     m.Component(),
					Version:  m.Header.Version,
					Files:    len(m.Files),
					Includes: m.Header.Includes,
					Optional: m.Header.Optional,
				})
				if err != nil {
					return err
				}
				fmt.Print(string(out))
			default:
				return fmt.Errorf("unknown --format %q, want text or yaml", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

func diagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Audit the target tree against the tracked bundle set without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := buildContext()
			if err != nil {
				return err
			}
			version, err := currentVersion(ctx)
			if err != nil {
				return err
			}
			store := swupd.NewStore(ctx)
			mom, err := store.LoadMoM(version)
			if err != nil {
				return err
			}
			tracking := swupd.NewTrackingStore(ctx)
			subs := swupd.NewSubscriptionSet()
			for _, name := range mustTrackedNames(tracking) {
				if ref, ok := mom.Bundle(name); ok {
					subs.Add(name, ref.LastChange)
				}
			}
			manifests, err := store.Recurse(mom, subs)
			if err != nil {
				return err
			}
			report, err := swupd.Diagnose(ctx, swupd.Consolidate(manifests))
			if err != nil {
				return err
			}
			for _, p := range report.Missing {
				fmt.Println(color.YellowString("missing: %s", p))
			}
			for _, p := range report.Modified {
				fmt.Println(color.YellowString("modified: %s", p))
			}
			for _, p := range report.Extra {
				fmt.Println(color.CyanString("extra: %s", p))
			}
			return nil
		},
	}
}

func reportFaults(faults []*swupd.Fault) error {
	if len(faults) == 0 {
		return nil
	}
	for _, f := range faults {
		fmt.Fprintln(os.Stderr, color.RedString(f.Error()))
	}
	code := swupd.MostSevere(faults)
	return &exitCodeError{code: code, err: fmt.Errorf("completed with %d error(s), most severe: %s", len(faults), code)}
}
