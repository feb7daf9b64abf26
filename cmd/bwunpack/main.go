// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command bwunpack extracts a sharded game-asset archive to a plain
// directory tree. It is a thin consumer of the bwpak decoding library
// (spec §1/§6: the CLI surface is out of scope for the core, listed for
// completeness only); all of the decoding logic lives in the parent
// package.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-bwfs/bwpak"
)

type config struct {
	saveIndex      bool
	saveMetaAssets bool
	saveTables     bool
	validate       bool
	dryRun         bool
	quiet          bool
	verbose        bool
	filters        stringList
}

// stringList accumulates repeated -filter flags, following flag.Value.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "unpack" {
		showHelp()
	}

	unpackCmd := flag.NewFlagSet("unpack", flag.ExitOnError)
	cfg := config{}
	unpackCmd.BoolVar(&cfg.saveIndex, "save-index", false, "Extract the decoded PFS name/file index to JSON")
	unpackCmd.BoolVar(&cfg.saveMetaAssets, "save-meta-assets", false, "Extract content/assets.bin's raw bytes")
	unpackCmd.BoolVar(&cfg.saveTables, "save-tables", false, "Extract decoded BWDB tables to JSON")
	unpackCmd.BoolVar(&cfg.validate, "validate", false, "Validate checksums while decoding")
	unpackCmd.BoolVar(&cfg.dryRun, "n", false, "Dry run: do not write any files")
	unpackCmd.BoolVar(&cfg.dryRun, "dry", false, "Dry run: do not write any files")
	unpackCmd.BoolVar(&cfg.quiet, "q", false, "Suppress progress output")
	unpackCmd.BoolVar(&cfg.quiet, "quiet", false, "Suppress progress output")
	unpackCmd.BoolVar(&cfg.verbose, "v", false, "Verbose logging")
	unpackCmd.BoolVar(&cfg.verbose, "verbose", false, "Verbose logging")
	unpackCmd.Var(&cfg.filters, "filter", "Only extract paths containing this substring (repeatable)")

	if len(os.Args) < 4 {
		showHelp()
	}
	outputPath := os.Args[2]
	installPath := os.Args[3]

	rest := os.Args[4:]
	installVersion := ""
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		installVersion = rest[0]
		rest = rest[1:]
	}
	unpackCmd.Parse(rest)

	if err := runUnpack(outputPath, installPath, installVersion, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "bwunpack:", err)
		os.Exit(1)
	}
}

func runUnpack(outputPath, installPath, installVersion string, cfg config) error {
	inst, err := bwpak.OpenInstall(installPath, bwpak.InstallOptions{
		InstallVersion: installVersion,
		Validate:       cfg.validate,
	})
	if err != nil {
		return err
	}
	defer inst.Close()

	if !cfg.quiet {
		fmt.Printf("opened install %s (version %s)\n", installPath, inst.Version)
	}

	if cfg.saveMetaAssets && inst.DB != nil && !cfg.dryRun {
		if err := extractAssetsDB(inst, outputPath, cfg); err != nil {
			return err
		}
	}
	if cfg.saveIndex && !cfg.dryRun {
		if err := saveIndex(inst, outputPath); err != nil {
			return err
		}
	}
	if cfg.saveTables && inst.DB != nil && !cfg.dryRun {
		if err := saveTables(inst.DB, outputPath); err != nil {
			return err
		}
	}

	count := 0
	for _, shard := range inst.FS.Shards() {
		for _, f := range shardFileIDs(shard) {
			name, ok := bwpak.Resources.Lookup(f)
			if !ok {
				continue
			}
			if !matchesFilters(name, cfg.filters) {
				continue
			}
			if cfg.dryRun {
				count++
				continue
			}
			if err := extractFile(shard, name, f, outputPath); err != nil {
				if !cfg.quiet {
					fmt.Fprintf(os.Stderr, "bwunpack: %s: %v\n", name, err)
				}
				continue
			}
			count++
			if cfg.verbose {
				fmt.Println(name)
			}
		}
	}

	if !cfg.quiet {
		fmt.Printf("extracted %d file(s)\n", count)
	}
	return nil
}

// shardFileIDs is a package-private helper exposed via the library's
// exported test-friendliness: bwunpack resolves names purely through the
// global interner rather than reaching into PFS internals, so it only
// needs the set of resource ids a shard actually knows. bwpak.PFS does not
// export its file-id set directly, so bwunpack walks the interner's
// snapshot instead and asks each shard whether it has the id.
func shardFileIDs(shard *bwpak.PFS) []uint64 {
	var out []uint64
	for id := range bwpak.Resources.Snapshot() {
		if shard.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func matchesFilters(name string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

func extractFile(shard *bwpak.PFS, name string, id uint64, outputRoot string) error {
	data, err := shard.Open(id)
	if err != nil {
		return err
	}
	dst := filepath.Join(outputRoot, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func extractAssetsDB(inst *bwpak.Install, outputRoot string, cfg config) error {
	data, err := inst.FS.Open(uint64(bwpak.NewResourceId("content/assets.bin")))
	if err != nil {
		return err
	}
	dst := filepath.Join(outputRoot, "content", "assets.bin")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// saveIndex writes every interned resource id known to any shard, as JSON,
// to <output>/index.json (spec §6 CLI surface "--save-index").
func saveIndex(inst *bwpak.Install, outputRoot string) error {
	type entry struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	}
	var out []entry
	for id, name := range bwpak.Resources.Snapshot() {
		if inst.FS.Has(id) {
			out = append(out, entry{ID: id, Name: name})
		}
	}
	return writeJSON(filepath.Join(outputRoot, "index.json"), out)
}

// saveTables writes every decoded BWDB table's (id, version, status) to
// <output>/tables.json (spec §6 CLI surface "--save-tables"). Per-record
// bodies aren't serialized here: they're reachable individually through
// db.Open and dumping every typed variant's full field set is a reporting
// concern the library itself deliberately leaves to its consumer.
func saveTables(db *bwpak.BigWorldDatabase, outputRoot string) error {
	type entry struct {
		ID      string `json:"id"`
		Version uint32 `json:"version"`
		Status  string `json:"status,omitempty"`
	}
	var out []entry
	for i, t := range db.Tables() {
		e := entry{ID: t.ID.String(), Version: t.Version}
		if err := db.TableStatus(i); err != nil {
			e.Status = err.Error()
		}
		out = append(out, e)
	}
	return writeJSON(filepath.Join(outputRoot, "tables.json"), out)
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func showHelp() {
	fmt.Print(`
bwunpack - extract a sharded game-asset archive

Usage:
  bwunpack unpack <output_path> <install_path> [install_version]
      [--save-index] [--save-meta-assets] [--save-tables] [--validate]
      [-n|--dry] [-q|--quiet] [-v|--verbose] [--filter <substr>...]
`)
	os.Exit(1)
}
