/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package logging configures the process-wide logrus logger a sandbox
// run writes to: stdout during interactive use, or a lumberjack-rotated
// file under a log directory otherwise. Grounded on the teacher's
// cmd/containerd-nydus-grpc/pkg/logging package, extended with the
// rotation fields the teacher's newer Config carries.
package logging

import (
	"context"
	"os"
	"path/filepath"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/agentfs/sandboxfs/pkg/sandboxconfig"
)

const (
	DefaultLogDirName  = "logs"
	defaultLogFileName = "sandboxfs.log"
)

// RotateLogArgs controls the lumberjack.Logger a non-stdout sandbox run
// writes through.
type RotateLogArgs struct {
	RotateLogMaxSize    int
	RotateLogMaxBackups int
	RotateLogMaxAge     int
	RotateLogLocalTime  bool
	RotateLogCompress   bool
}

// RotateArgsFromConfig lifts the rotation fields of a loaded
// sandboxconfig.Config into the RotateLogArgs SetUp expects, so
// cmd/sandboxfs-run never has to know about lumberjack directly.
func RotateArgsFromConfig(cfg *sandboxconfig.Config) *RotateLogArgs {
	return &RotateLogArgs{
		RotateLogMaxSize:    cfg.RotateLogMaxSize,
		RotateLogMaxBackups: cfg.RotateLogMaxBackups,
		RotateLogMaxAge:     cfg.RotateLogMaxAge,
		RotateLogLocalTime:  cfg.RotateLogLocalTime,
		RotateLogCompress:   cfg.RotateLogCompress,
	}
}

// SetUp points the package-global logrus logger at stdout or a rotated
// log file and sets its level and formatter. logRotateArgs is required
// whenever logToStdout is false.
func SetUp(logLevel string, logToStdout bool, logDir string, logRotateArgs *RotateLogArgs) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	if logToStdout {
		logrus.SetOutput(os.Stdout)
	} else {
		if logRotateArgs == nil {
			return errors.New("logRotateArgs is needed when logToStdout is false")
		}

		if err := os.MkdirAll(logDir, 0755); err != nil {
			return errors.Wrapf(err, "create log dir %s", logDir)
		}
		logFile := filepath.Join(logDir, defaultLogFileName)

		lumberjackLogger := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logRotateArgs.RotateLogMaxSize,
			MaxBackups: logRotateArgs.RotateLogMaxBackups,
			MaxAge:     logRotateArgs.RotateLogMaxAge,
			Compress:   logRotateArgs.RotateLogCompress,
			LocalTime:  logRotateArgs.RotateLogLocalTime,
		}
		logrus.SetOutput(lumberjackLogger)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: log.RFC3339NanoFixed,
		FullTimestamp:   true,
	})
	return nil
}

// WithContext returns a background context carrying the package-global
// logger, for call sites that need one before a guest-specific context
// exists (e.g. during startup).
func WithContext() context.Context {
	return log.WithLogger(context.Background(), log.L)
}
