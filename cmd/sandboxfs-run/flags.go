/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const defaultLogLevel = logrus.InfoLevel

// Args holds every sandboxfs-run flag. The command to trace itself is
// not a flag: it is everything cli.Context.Args() holds after the
// flags are consumed, conventionally separated from them by "--".
type Args struct {
	ConfigPath  string
	LogLevel    string
	LogDir      string
	LogToStdout bool
	MetricsAddr string
}

type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to the sandboxfs TOML configuration",
			Destination: &args.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       defaultLogLevel.String(),
			Aliases:     []string{"l"},
			Usage:       "set the logging `LEVEL` [trace, debug, info, warn, error, fatal, panic]",
			Destination: &args.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Value:       "",
			Aliases:     []string{"L"},
			Usage:       "set `DIRECTORY` to store log files",
			Destination: &args.LogDir,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Usage:       "log messages to standard out rather than files",
			Destination: &args.LogToStdout,
		},
		&cli.StringFlag{
			Name:        "metrics-address",
			Value:       "",
			Usage:       "expose Prometheus metrics and a mount-table dump over the unix socket at `PATH`",
			Destination: &args.MetricsAddr,
		},
	}
}

func newFlags() *Flags {
	var args Args
	return &Flags{
		Args: &args,
		F:    buildFlags(&args),
	}
}
