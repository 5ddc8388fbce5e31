// Package cmd implements the beacon CLI commands.
package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pellucid-io/beacon"
	"github.com/pellucid-io/beacon/cli/config"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/metrics"
	"github.com/pellucid-io/beacon/pings"
	"github.com/pellucid-io/beacon/types"
)

// SendCommand returns the send command. It records the given metrics and
// events, submits one ping and waits for the upload to settle.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Record metrics and submit a ping",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ping",
				Usage:    "Ping name to submit",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "reason",
				Usage: "Submission reason code",
			},
			&cli.StringSliceFlag{
				Name:  "metric",
				Usage: "String metric as category.name=value (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "count",
				Usage: "Counter metric as category.name=amount (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "event",
				Usage: "Event as category.name (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log collected ping payloads",
			},
		},
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("verbose") {
		cfg.LogPings = true
	}

	logger := log.NewLogger("beacon-cli")
	bcfg, closeStorage, err := cfg.Build(logger)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = closeStorage() }()

	b, err := beacon.New(cfg.AppID, cfg.Wants(), bcfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	pingName := c.String("ping")
	ping := b.NewPing(pings.PingTypeConfig{
		Name:        pingName,
		SendIfEmpty: true,
		ReasonCodes: reasonCodes(c.String("reason")),
	})

	for _, spec := range c.StringSlice("metric") {
		category, name, value, err := splitMetricSpec(spec)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		metrics.NewString(b.Context(), metricMeta(category, name, pingName)).Set(value)
	}
	for _, spec := range c.StringSlice("count") {
		category, name, value, err := splitMetricSpec(spec)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		var amount int64
		if _, err := fmt.Sscanf(value, "%d", &amount); err != nil {
			return cli.Exit(fmt.Sprintf("invalid counter amount %q in %q", value, spec), 1)
		}
		metrics.NewCounter(b.Context(), metricMeta(category, name, pingName)).Add(amount)
	}
	for _, spec := range c.StringSlice("event") {
		category, name, ok := strings.Cut(spec, ".")
		if !ok {
			return cli.Exit(fmt.Sprintf("invalid event %q, want category.name", spec), 1)
		}
		metrics.NewEvent(b.Context(), metricMeta(category, name, pingName), nil).Record(nil)
	}

	ping.Submit(c.String("reason"))
	b.Shutdown()

	stats := b.UploadStats()
	fmt.Printf("ping=%s enqueued=%d sent=%d dropped=%d retries=%d bytes=%d\n",
		pingName, stats.Enqueued, stats.Succeeded,
		stats.DroppedByServer+stats.OversizeDrops, stats.Retries, stats.BytesSent)
	if stats.Succeeded == 0 && stats.Enqueued > 0 {
		return cli.Exit("ping not delivered", 2)
	}
	return nil
}

func reasonCodes(reason string) []string {
	if reason == "" {
		return nil
	}
	return []string{reason}
}

func metricMeta(category, name, pingName string) types.CommonMetricData {
	return types.CommonMetricData{
		Category:    category,
		Name:        name,
		SendInPings: []string{pingName},
		Lifetime:    types.LifetimePing,
	}
}

func splitMetricSpec(spec string) (category, name, value string, err error) {
	id, value, ok := strings.Cut(spec, "=")
	if !ok {
		return "", "", "", fmt.Errorf("invalid metric %q, want category.name=value", spec)
	}
	category, name, ok = strings.Cut(id, ".")
	if !ok {
		return "", "", "", fmt.Errorf("invalid metric identifier %q, want category.name", id)
	}
	return category, name, value, nil
}
