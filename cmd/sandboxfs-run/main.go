/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/agentfs/sandboxfs/internal/logging"
	"github.com/agentfs/sandboxfs/internal/metricsserver"
	"github.com/agentfs/sandboxfs/pkg/fdtable"
	"github.com/agentfs/sandboxfs/pkg/mount"
	"github.com/agentfs/sandboxfs/pkg/runner"
	"github.com/agentfs/sandboxfs/pkg/sandboxconfig"
	"github.com/agentfs/sandboxfs/pkg/syscalls"
	"github.com/agentfs/sandboxfs/pkg/vfs"
	"github.com/agentfs/sandboxfs/pkg/vfs/dbvfs"
	"github.com/agentfs/sandboxfs/pkg/vfs/memvfs"
)

func main() {
	flags := newFlags()
	app := &cli.App{
		Name:        "sandboxfs-run",
		Usage:       "trace a command under a virtual mount table",
		Version:     Version,
		Flags:       flags.F,
		HideVersion: true,
		Action: func(c *cli.Context) error {
			return run(c, flags.Args)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("sandboxfs-run exited with an error")
	}
}

// run wires sandboxconfig into the mount/fd tables, starts the
// optional metrics server, then hands the traced command to pkg/runner.
// Once the guest process exits, it exits this process with the guest's
// exit code; it returns only on error.
func run(c *cli.Context, args *Args) error {
	// Ignore SIGPIPE, mirroring original_source/cli's reset_sigpipe:
	// a tracer writing to a guest that has already exited must not be
	// killed by a broken-pipe-style signal from its own plumbing.
	signal.Ignore(syscall.SIGPIPE)

	cfg, err := sandboxconfig.Load(args.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	cfg.FillDefaults()
	if args.LogToStdout {
		cfg.LogToStdout = true
	}
	if args.LogDir != "" {
		cfg.LogDir = args.LogDir
	}
	if args.LogLevel != "" {
		cfg.LogLevel = args.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	if err := logging.SetUp(cfg.LogLevel, cfg.LogToStdout, cfg.LogDir, logging.RotateArgsFromConfig(cfg)); err != nil {
		return errors.Wrap(err, "set up logging")
	}
	ctx := logging.WithContext()
	log.G(ctx).Infof("starting sandboxfs-run, pid %d, version %s", os.Getpid(), Version)

	mounts, err := buildMountTable(cfg)
	if err != nil {
		return errors.Wrap(err, "build mount table")
	}
	fds := fdtable.New()
	handlers := syscalls.New(mounts, fds)

	if args.MetricsAddr != "" {
		srv := metricsserver.New(mounts)
		go func() {
			if err := srv.Serve(ctx, args.MetricsAddr); err != nil {
				log.G(ctx).WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	command := c.Args().Slice()
	if len(command) == 0 {
		return errors.New("no command given to trace; pass it after --")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scratchBudget, err := cfg.ScratchSizeBytes()
	if err != nil {
		return errors.Wrap(err, "resolve scratch_size")
	}

	code, err := runner.Run(runCtx, handlers, command, cfg.Concurrency, scratchBudget)
	if err != nil {
		return errors.Wrap(err, "run traced command")
	}
	os.Exit(code)
	return nil
}

// buildMountTable constructs the mount.Table and the VFS backend for
// every entry cfg.Mounts names: "passthrough" binds vfs.Passthrough and
// only ever takes part in path redirection, "memvfs"/"dbvfs" are
// in-tree reference virtual backends.
func buildMountTable(cfg *sandboxconfig.Config) (*mount.Table, error) {
	entries := make([]mount.Entry, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		var backend vfs.VFS
		backendRoot := ""
		switch m.Backend {
		case sandboxconfig.BackendPassthrough:
			backend = vfs.Passthrough{}
			backendRoot = m.BackendRoot
		case sandboxconfig.BackendMemVFS:
			backend = memvfs.New()
		case sandboxconfig.BackendDBVFS:
			v, err := dbvfs.New(m.BackendRoot)
			if err != nil {
				return nil, errors.Wrapf(err, "open dbvfs at %q", m.BackendRoot)
			}
			backend = v
		default:
			return nil, errors.Errorf("mount %q: unknown backend %q", m.GuestPrefix, m.Backend)
		}
		entries = append(entries, mount.Entry{
			GuestPrefix: m.GuestPrefix,
			Backend:     backend,
			BackendRoot: backendRoot,
		})
	}
	return mount.New(entries)
}
