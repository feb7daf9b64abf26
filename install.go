// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-bwfs/bwpak/log"
)

// InstallOptions configures OpenInstall (spec §2 AMBIENT STACK
// "Configuration").
type InstallOptions struct {
	// InstallVersion overrides build-folder discovery with an explicit
	// subdirectory name (spec §6 CLI surface's optional [install_version]
	// argument).
	InstallVersion string

	// Validate is threaded through to every PFS shard and the BWDB.
	Validate bool

	// Logger receives non-fatal diagnostics.
	Logger log.Logger
}

// Filesystem is a merged, read-only view over every PFS shard discovered
// for an install (spec §2 SUPPLEMENTED FEATURES item 2 "Merged multi-shard
// PFS view"): each per-shard Open is tried in discovery order, first match
// wins. It adds no new binary format of its own; it is a thin aggregate
// over the per-shard Open operation spec §4.6 already defines.
type Filesystem struct {
	shards []*PFS
}

// Open returns the result of Open on the first shard that knows resourceID,
// including its error; later shards are not tried.
func (fs *Filesystem) Open(resourceID uint64) ([]byte, error) {
	for _, shard := range fs.shards {
		if shard.Has(resourceID) {
			return shard.Open(resourceID)
		}
	}
	return nil, ErrAssetNotFound
}

// Has reports whether any shard knows resourceID.
func (fs *Filesystem) Has(resourceID uint64) bool {
	for _, shard := range fs.shards {
		if shard.Has(resourceID) {
			return true
		}
	}
	return false
}

// Shards returns the underlying per-.idx PFS shards, in discovery order.
func (fs *Filesystem) Shards() []*PFS { return fs.shards }

// Close releases every shard's memory maps.
func (fs *Filesystem) Close() error {
	var firstErr error
	for _, shard := range fs.shards {
		if err := shard.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Install is the result of OpenInstall: the merged filesystem view over a
// build's shards, plus the BWDB loaded from content/assets.bin through it,
// if present (spec §2's final data-flow paragraph, §2 SUPPLEMENTED
// FEATURES item 1).
type Install struct {
	Root    string
	Version string

	FS  *Filesystem
	DB  *BigWorldDatabase

	logger *log.Helper
}

// assetsDBPath is the well-known location of the embedded BWDB blob within
// an install's merged filesystem, per spec §2 ("content/assets.bin").
const assetsDBPath = "content/assets.bin"

// OpenInstall discovers a build folder under root (the highest numeric
// subdirectory name, or opts.InstallVersion if set), loads every `.idx`
// beneath it into one PFS shard each, and optionally loads the BWDB through
// the merged view (spec §2 SUPPLEMENTED FEATURES item 1).
func OpenInstall(root string, opts InstallOptions) (*Install, error) {
	logger := installLogger(opts)

	version := opts.InstallVersion
	if version == "" {
		v, err := highestNumericSubdir(root)
		if err != nil {
			return nil, err
		}
		version = v
	}

	buildDir := filepath.Join(root, version)
	info, err := os.Stat(buildDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInstall, buildDir)
	}

	idxPaths, err := findIdxFiles(buildDir)
	if err != nil {
		return nil, err
	}
	if len(idxPaths) == 0 {
		return nil, fmt.Errorf("%w: no .idx files under %s", ErrInvalidInstall, buildDir)
	}

	fs := &Filesystem{}
	for _, idxPath := range idxPaths {
		pkgDir := filepath.Dir(idxPath)
		shard, err := OpenPFS(pkgDir, idxPath, PFSOptions{Validate: opts.Validate, Logger: opts.Logger})
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("bwpak: %s: %w", idxPath, err)
		}
		fs.shards = append(fs.shards, shard)
	}

	inst := &Install{
		Root:    root,
		Version: version,
		FS:      fs,
		logger:  logger,
	}

	assetsID := NewResourceId(assetsDBPath)
	if fs.Has(uint64(assetsID)) {
		blob, err := fs.Open(uint64(assetsID))
		if err != nil {
			logger.Warnf("bwpak: %s present but unreadable: %v", assetsDBPath, err)
		} else {
			db, err := OpenBigWorldDatabase(blob, BWDBOptions{Validate: opts.Validate, Logger: opts.Logger})
			if err != nil {
				logger.Warnf("bwpak: %s: %v", assetsDBPath, err)
			} else {
				inst.DB = db
			}
		}
	}

	return inst, nil
}

// Close releases the install's filesystem shards.
func (inst *Install) Close() error {
	return inst.FS.Close()
}

func installLogger(opts InstallOptions) *log.Helper {
	if opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}

// highestNumericSubdir returns the name of root's numerically-largest
// subdirectory (build folders are named like "0.11.6.0"), comparing
// dot-separated numeric components the way a version sort would (spec §2
// SUPPLEMENTED FEATURES item 1).
func highestNumericSubdir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInstall, err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() && isNumericVersionName(e.Name()) {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no numbered build folder under %s", ErrInvalidInstall, root)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return compareVersionNames(candidates[i], candidates[j]) < 0
	})
	return candidates[len(candidates)-1], nil
}

func isNumericVersionName(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

// compareVersionNames compares two dot-separated numeric version strings
// component by component.
func compareVersionNames(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

// findIdxFiles walks dir for every file named *.idx, matching the CLI's
// directory-traversal style (spec §2 SUPPLEMENTED FEATURES item 1, grounded
// on cmd/dump.go's LoopDirsFiles).
func findIdxFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".idx") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
