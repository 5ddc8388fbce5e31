package beacon

import (
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/platform"
	"github.com/pellucid-io/beacon/upload"
)

// NewForTesting assembles an instance on the stub platform: fresh in-memory
// stores, a scriptable uploader and silent logs. The returned stub observes
// every upload attempt.
func NewForTesting(applicationID string, uploadEnabled bool, cfg Config) (*Beacon, *upload.StubUploader, error) {
	plat, uploader := platform.Test()
	cfg.Platform = plat
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	b, err := New(applicationID, uploadEnabled, cfg)
	if err != nil {
		return nil, nil, err
	}
	return b, uploader, nil
}

// TestBlockOnQueue waits for every queued recording task, then every queued
// upload task.
func (b *Beacon) TestBlockOnQueue() {
	b.ctx.Dispatcher.BlockOnQueue()
	b.uploader.BlockOnUploads()
}

// TestReset wipes every store and re-applies the upload-enabled state, as if
// the instance had just been created on fresh storage. Blocks until done.
func (b *Beacon) TestReset(uploadEnabled bool) {
	b.ctx.Dispatcher.Launch(func() error {
		b.uploader.ClearPendingPingsQueue()
		b.eventsDB.ClearAll()
		b.metricsDB.ClearAll()
		b.pingsDB.ClearAll()
		b.reconcileUploadState(uploadEnabled)
		return nil
	}, "beacon.testReset")
	b.ctx.Dispatcher.BlockOnQueue()
}
