// Package main provides the beacon CLI entrypoint.
//
// Usage:
//
//	beacon --config beacon.yaml send --ping prototype --metric app.channel=nightly
//	beacon --config beacon.yaml pending
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pellucid-io/beacon/cli/cmd"
)

func main() {
	app := &cli.App{
		Name:    "beacon",
		Usage:   "Telemetry client - records metrics and submits pings",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to beacon.yaml",
				Value:   "beacon.yaml",
				EnvVars: []string{"BEACON_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			cmd.SendCommand(),
			cmd.PendingCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit; this branch is only
		// reached if it didn't.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, respecting cli.ExitCoder.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() returns "exit status N", skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
