// Package pings implements ping collection: the pending-ping queue, the
// payload maker, and the PingType submission API.
package pings

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/storage"
	"github.com/pellucid-io/beacon/types"
)

// storeName is the pending-ping store. Part of the on-disk layout.
const storeName = "pings"

// Pending-queue quota. Oversupply deletes oldest-first.
const (
	MaxPendingPings     = 250
	MaxPendingPingsSize = 10 * 1024 * 1024
)

// Observer is notified of pings entering the queue. The uploader attaches
// itself here.
type Observer interface {
	// Update is called synchronously for every recorded or rescanned ping.
	Update(identifier string, ping *types.PendingPing)
}

// Database is the durable queue of collected pings awaiting upload.
type Database struct {
	ctx      *core.Context
	logger   *log.Logger
	store    storage.Store
	observer Observer
}

// Verify Database implements the context contract.
var _ core.PingsDatabase = (*Database)(nil)

// NewDatabase opens the pending-ping store through the factory.
func NewDatabase(ctx *core.Context, open storage.Factory, logger *log.Logger) (*Database, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	store, err := open(storeName)
	if err != nil {
		return nil, fmt.Errorf("open pings store: %w", err)
	}
	return &Database{ctx: ctx, logger: logger, store: store}, nil
}

// AttachObserver sets the queue observer. Call before recording or scanning.
func (d *Database) AttachObserver(o Observer) { d.observer = o }

// RecordPing persists a collected ping and hands it to the observer.
func (d *Database) RecordPing(path, identifier string, payload map[string]any, headers map[string]string) {
	ping := &types.PendingPing{
		CollectionDate: d.ctx.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Path:           path,
		Payload:        payload,
		Headers:        headers,
	}
	err := d.store.Update([]string{identifier}, func(any) any { return ping.Stored() })
	if err != nil {
		d.logger.Error("failed to persist ping", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return
	}
	if d.observer != nil {
		d.observer.Update(identifier, ping)
	}
}

// DeletePing removes a ping from the queue. Missing identifiers are fine.
func (d *Database) DeletePing(identifier string) {
	if err := d.store.Delete(identifier); err != nil {
		d.logger.Error("failed to delete ping", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
	}
}

type pendingEntry struct {
	identifier string
	ping       *types.PendingPing
}

// getAllPings returns the queue ordered by collection date, oldest first.
// Corrupt entries are deleted on the way.
func (d *Database) getAllPings() []pendingEntry {
	raw, err := d.store.Get()
	if err != nil {
		d.logger.Error("failed to read pings store", map[string]any{"error": err.Error()})
		return nil
	}
	tree, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	entries := make([]pendingEntry, 0, len(tree))
	for identifier, rawPing := range tree {
		ping, verr := types.PingFromStored(rawPing)
		if verr != nil {
			d.logger.Error("deleting corrupt ping", map[string]any{
				"identifier": identifier,
				"reason":     verr.Error(),
			})
			d.DeletePing(identifier)
			continue
		}
		entries = append(entries, pendingEntry{identifier: identifier, ping: ping})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339, entries[i].ping.CollectionDate)
		tj, _ := time.Parse(time.RFC3339, entries[j].ping.CollectionDate)
		return ti.Before(tj)
	})
	return entries
}

// getAllPingsWithoutSurplus enforces the pending quota. Non-deletion pings
// are scanned newest first; once either bound is crossed every older ping is
// deleted, even ones that would individually fit. Deletion-request pings are
// exempt and always delivered first.
func (d *Database) getAllPingsWithoutSurplus(maxCount int, maxSize int) []pendingEntry {
	all := d.getAllPings()

	var exempt []pendingEntry
	var scanned []pendingEntry
	for _, e := range all {
		if types.IsDeletionRequestPath(e.ping.Path) {
			exempt = append(exempt, e)
		} else {
			scanned = append(scanned, e)
		}
	}

	// Newest first.
	for i, j := 0, len(scanned)-1; i < j; i, j = i+1, j-1 {
		scanned[i], scanned[j] = scanned[j], scanned[i]
	}

	deleting := false
	count, size := 0, 0
	var kept []pendingEntry
	for _, e := range scanned {
		pingSize := storedPingSize(e.ping)
		if !deleting && (size+pingSize > maxSize || count+1 > maxCount) {
			deleting = true
			d.logger.Warn("pending pings quota reached, deleting oldest pings", map[string]any{
				"count": count,
				"size":  size,
			})
		}
		if deleting {
			d.DeletePing(e.identifier)
			continue
		}
		count++
		size += pingSize
		// Restore oldest-first order.
		kept = append([]pendingEntry{e}, kept...)
	}
	return append(exempt, kept...)
}

// storedPingSize approximates a ping's upload size in bytes.
func storedPingSize(ping *types.PendingPing) int {
	data, err := json.Marshal(ping.Stored())
	if err != nil {
		return 0
	}
	return len(data)
}

// ScanPendingPings replays the (quota-enforced) queue into the observer.
// Runs once during SDK initialization.
func (d *Database) ScanPendingPings() {
	if d.observer == nil {
		return
	}
	for _, e := range d.getAllPingsWithoutSurplus(MaxPendingPings, MaxPendingPingsSize) {
		d.observer.Update(e.identifier, e.ping)
	}
}

// ClearAll wipes the pending queue.
func (d *Database) ClearAll() {
	if err := d.store.Delete(); err != nil {
		d.logger.Error("failed to clear pings store", map[string]any{"error": err.Error()})
	}
}
