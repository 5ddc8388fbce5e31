package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/pellucid-io/beacon/cli/config"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/storage"
	"github.com/pellucid-io/beacon/storage/redisstore"
	"github.com/pellucid-io/beacon/types"
)

// PendingCommand returns the pending command. It lists queued pings
// straight from storage, without initializing the SDK, so nothing gets
// uploaded or rescanned as a side effect.
func PendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "List pings queued for upload",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print full ping records as JSON",
			},
		},
		Action: pendingAction,
	}
}

func pendingAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	store, closeStorage, err := openPingsStore(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = closeStorage() }()

	raw, err := store.Get()
	if err != nil {
		return cli.Exit(fmt.Sprintf("read pings store: %v", err), 1)
	}
	tree, _ := raw.(map[string]any)
	if len(tree) == 0 {
		fmt.Println("no pending pings")
		return nil
	}

	identifiers := make([]string, 0, len(tree))
	for id := range tree {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	for _, id := range identifiers {
		ping, verr := types.PingFromStored(tree[id])
		if verr != nil {
			fmt.Printf("%s  <corrupt: %v>\n", id, verr)
			continue
		}
		if c.Bool("json") {
			record, _ := json.MarshalIndent(ping.Payload, "", "  ")
			fmt.Printf("%s %s %s\n%s\n", id, ping.CollectionDate, ping.Path, record)
			continue
		}
		fmt.Printf("%s  %s  %s\n", id, ping.CollectionDate, ping.Path)
	}
	return nil
}

// openPingsStore opens the pending-ping store for the configured backend.
// The store name must match what the SDK writes.
func openPingsStore(cfg *config.Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Backend {
	case "", "memory":
		return nil, noop, fmt.Errorf("memory storage holds no pending pings across runs")
	case "file":
		store, err := storage.FileFactory(cfg.Storage.Path, log.NewNop())("pings")
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case "redis":
		client, err := redisstore.New(redisstore.Config{
			URL:     cfg.Storage.RedisURL,
			Timeout: cfg.Storage.RedisTimeout.Duration,
		})
		if err != nil {
			return nil, noop, err
		}
		store, err := client.Open("pings")
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
