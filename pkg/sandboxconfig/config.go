/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package sandboxconfig loads the TOML configuration describing a
// sandbox run: its mount table, scratch-stack budget, scheduler
// concurrency, and logging. Grounded on the teacher's config.Config /
// config.LoadShotterConfigFile.
package sandboxconfig

import (
	"os"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	// DefaultLogLevel matches the teacher's config.DefaultLogLevel.
	DefaultLogLevel = "info"

	// DefaultScratchSize is the scratch-stack budget each handler's
	// Scratch may reserve when scratch_size is unset (spec.md §4.C).
	DefaultScratchSize = "4KiB"

	// DefaultConcurrency bounds how many guest threads may be traced
	// at once (spec.md §5).
	DefaultConcurrency = 64

	// DefaultRotateLogMaxSize is the per-file size budget, in MB,
	// lumberjack rotates the log at.
	DefaultRotateLogMaxSize = 100
	// DefaultRotateLogMaxBackups caps how many rotated files lumberjack
	// keeps around.
	DefaultRotateLogMaxBackups = 5
)

// Backend names the VFS implementation a mount entry binds to.
// "passthrough" redirects to BackendRoot on the host; "memvfs" and
// "dbvfs" are the in-tree reference virtual backends.
type Backend string

const (
	BackendPassthrough Backend = "passthrough"
	BackendMemVFS      Backend = "memvfs"
	BackendDBVFS       Backend = "dbvfs"
)

// MountEntry is one [[mount]] table in the TOML file.
type MountEntry struct {
	GuestPrefix string  `toml:"guest_prefix"`
	Backend     Backend `toml:"backend"`
	// BackendRoot is the host path "passthrough" redirects into, or
	// the on-disk directory "dbvfs" persists its database under.
	// Unused for "memvfs".
	BackendRoot string `toml:"backend_root"`
}

// Config is the root of a sandbox run's TOML configuration.
type Config struct {
	Mounts      []MountEntry `toml:"mount"`
	ScratchSize string       `toml:"scratch_size"`
	Concurrency int64        `toml:"concurrency"`
	LogLevel    string       `toml:"log_level"`
	LogToStdout bool         `toml:"log_to_stdout"`
	LogDir      string       `toml:"log_dir"`

	// Log rotation, applied when LogToStdout is false. Mirrors the
	// teacher's Config.RotateLogMaxSize et al., which feed a
	// gopkg.in/natefinch/lumberjack.v2 logger in internal/logging.
	RotateLogMaxSize    int  `toml:"log_rotate_max_size"`
	RotateLogMaxBackups int  `toml:"log_rotate_max_backups"`
	RotateLogMaxAge     int  `toml:"log_rotate_max_age"`
	RotateLogLocalTime  bool `toml:"log_rotate_local_time"`
	RotateLogCompress   bool `toml:"log_rotate_compress"`
}

// Load reads and parses the TOML file at path. A missing file is not
// an error: it yields a zero Config, and FillDefaults provides every
// value, matching the teacher's "config file is optional" convention
// in LoadShotterConfigFile.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}
	tree, err := toml.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, errors.Wrapf(err, "load config file %q", path)
	}
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshal config file %q", path)
	}
	return &cfg, nil
}

// FillDefaults applies DefaultLogLevel/DefaultScratchSize/
// DefaultConcurrency to any field left unset, mirroring the teacher's
// Config.FillupWithDefaults.
func (c *Config) FillDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ScratchSize == "" {
		c.ScratchSize = DefaultScratchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RotateLogMaxSize == 0 {
		c.RotateLogMaxSize = DefaultRotateLogMaxSize
	}
	if c.RotateLogMaxBackups == 0 {
		c.RotateLogMaxBackups = DefaultRotateLogMaxBackups
	}
}

// ScratchSizeBytes parses ScratchSize (e.g. "4KiB", "1MB") via
// docker/go-units, the same RAM-size parser the teacher's ecosystem
// uses for cache- and buffer-size configuration fields.
func (c *Config) ScratchSizeBytes() (int64, error) {
	n, err := units.RAMInBytes(c.ScratchSize)
	if err != nil {
		return 0, errors.Wrapf(err, "parse scratch_size %q", c.ScratchSize)
	}
	return n, nil
}

// Validate checks the invariants spec.md §3 requires of a mount table
// before it is ever handed to pkg/mount.New: every prefix absolute,
// every backend recognized, passthrough/dbvfs entries carry a
// non-empty backend_root.
func (c *Config) Validate() error {
	for _, m := range c.Mounts {
		if len(m.GuestPrefix) == 0 || m.GuestPrefix[0] != '/' {
			return errors.Errorf("mount %q: guest_prefix must be absolute", m.GuestPrefix)
		}
		switch m.Backend {
		case BackendPassthrough, BackendDBVFS:
			if m.BackendRoot == "" {
				return errors.Errorf("mount %q: backend %q requires backend_root", m.GuestPrefix, m.Backend)
			}
		case BackendMemVFS:
		default:
			return errors.Errorf("mount %q: unknown backend %q", m.GuestPrefix, m.Backend)
		}
	}
	return nil
}
