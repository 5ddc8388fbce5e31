// Package beacon is a telemetry client SDK. It records metrics and events
// into durable stores, assembles them into pings and uploads those to a
// telemetry endpoint, with persistence across restarts, an upload-enabled
// kill switch and client-side rate limiting.
package beacon

import (
	"fmt"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/dispatcher"
	"github.com/pellucid-io/beacon/events"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/metrics"
	"github.com/pellucid-io/beacon/pings"
	"github.com/pellucid-io/beacon/platform"
	"github.com/pellucid-io/beacon/types"
	"github.com/pellucid-io/beacon/upload"
)

// Beacon is one initialized SDK instance. Create it with New; recording
// APIs hang off the Context it exposes.
type Beacon struct {
	ctx    *core.Context
	cfg    Config
	logger *log.Logger
	plat   *platform.Platform

	metricsDB *metrics.Database
	eventsDB  *events.Database
	pingsDB   *pings.Database
	errors    *metrics.ErrorManager
	uploader  *upload.Manager

	core            *coreMetrics
	deletionRequest *pings.PingType
}

// New assembles and initializes an SDK instance. Initialization work runs
// on the dispatcher flow; recording APIs can be used immediately, their
// tasks queue until the flow is flushed.
func New(applicationID string, uploadEnabled bool, cfg Config) (*Beacon, error) {
	appID := sanitizeApplicationID(applicationID)
	if appID == "" {
		return nil, fmt.Errorf("invalid application id %q", applicationID)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger("beacon")
	}
	plat := cfg.Platform
	if plat == nil {
		plat = platform.Host(cfg.StoragePath, logger)
	}

	ctx := core.NewContext()
	ctx.ApplicationID = appID
	ctx.Logger = logger
	ctx.Dispatcher = dispatcher.New(dispatcher.DefaultMaxPreInitQueueSize, logger)
	ctx.Debug = core.DebugOptions{
		LogPings:     cfg.LogPings,
		DebugViewTag: cfg.DebugViewTag,
		SourceTags:   cfg.SourceTags,
	}

	metricsDB, err := metrics.NewDatabase(ctx, plat.OpenStore, logger)
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}
	eventsDB, err := events.NewDatabase(ctx, plat.OpenStore, logger)
	if err != nil {
		return nil, fmt.Errorf("open events database: %w", err)
	}
	pingsDB, err := pings.NewDatabase(ctx, plat.OpenStore, logger)
	if err != nil {
		return nil, fmt.Errorf("open pings database: %w", err)
	}
	ctx.Metrics = metricsDB
	ctx.Events = eventsDB
	ctx.Pings = pingsDB
	ctx.Errors = metrics.NewErrorManager(ctx, logger)

	b := &Beacon{
		ctx:       ctx,
		cfg:       cfg,
		logger:    logger,
		plat:      plat,
		metricsDB: metricsDB,
		eventsDB:  eventsDB,
		pingsDB:   pingsDB,
		uploader:  upload.NewManager(ctx, pingsDB, plat.Uploader, upload.DefaultPolicy(), cfg.ServerEndpoint, logger),
		core:      newCoreMetrics(ctx),
	}
	b.errors = ctx.Errors.(*metrics.ErrorManager)
	b.deletionRequest = pings.NewPingType(ctx, pings.PingTypeConfig{
		Name:            types.DeletionRequestPingName,
		IncludeClientID: true,
		SendIfEmpty:     true,
	}, logger)
	pingsDB.AttachObserver(b.uploader)

	ctx.Dispatcher.FlushInit(func() error {
		b.initialize(uploadEnabled)
		return nil
	})
	return b, nil
}

// initialize runs once on the dispatcher flow, before any queued recording
// task.
func (b *Beacon) initialize(uploadEnabled bool) {
	// Application lifetime does not survive a restart.
	b.metricsDB.Clear(types.LifetimeApplication, "")

	b.reconcileUploadState(uploadEnabled)
	b.ctx.SetInitialized(true)

	b.eventsDB.Initialize()
	b.pingsDB.ScanPendingPings()
	b.logger.Info("initialized", map[string]any{
		"application_id": b.ctx.ApplicationID,
		"upload_enabled": uploadEnabled,
		"platform":       b.plat.Name,
	})
}

// reconcileUploadState settles the upload-enabled flag against what the
// stored client id says the previous run decided.
func (b *Beacon) reconcileUploadState(uploadEnabled bool) {
	previouslyDisabled := false
	if stored := b.metricsDB.GetMetric(types.ClientInfoStorage, b.core.clientID.Meta(), types.KindUUID); stored != nil {
		id, _ := stored.Stored().(string)
		previouslyDisabled = id == types.KnownClientID
	}

	switch {
	case uploadEnabled:
		// Enabling (or staying enabled) replaces a leftover known client
		// id with a fresh one.
		b.ctx.SetUploadEnabled(true)
		b.core.initialize(b, b.plat.Info)
	case previouslyDisabled:
		// Already disabled, deletion request already sent.
		b.ctx.SetUploadEnabled(false)
	default:
		// Freshly disabled, including a first run that starts disabled.
		// SetInitialized has not happened yet, so submit directly after
		// flipping the flags the submission checks.
		b.ctx.SetInitialized(true)
		b.ctx.SetUploadEnabled(false)
		b.disableUpload()
	}
}

// SetUploadEnabled flips the upload kill switch. Disabling submits a
// deletion-request ping and wipes stored telemetry except the first run
// date; enabling regenerates the client id and client info.
func (b *Beacon) SetUploadEnabled(flag bool) {
	b.ctx.Dispatcher.Launch(func() error {
		if b.ctx.UploadEnabled() == flag {
			b.logger.Debug("upload enabled state unchanged", map[string]any{"enabled": flag})
			return nil
		}
		b.ctx.SetUploadEnabled(flag)
		if flag {
			b.core.initialize(b, b.plat.Info)
			return nil
		}
		b.disableUpload()
		return nil
	}, "beacon.setUploadEnabled")
}

// disableUpload submits the deletion-request ping and clears stored
// telemetry. Runs on the dispatcher flow with uploadEnabled already false.
func (b *Beacon) disableUpload() {
	if err := b.deletionRequest.SubmitSync(""); err != nil {
		b.logger.Error("failed to submit deletion request", map[string]any{"error": err.Error()})
	}
	b.clearTelemetry()
}

// clearTelemetry wipes every store, preserving the first run date and
// pinning the known client id so future runs can tell upload was disabled.
// Queued uploads are dropped; the in-flight deletion request survives.
func (b *Beacon) clearTelemetry() {
	firstRunDate := b.metricsDB.GetMetric(types.ClientInfoStorage, b.core.firstRunDate.Meta(), types.KindDatetime)

	b.uploader.ClearPendingPingsQueue()
	b.eventsDB.ClearAll()
	b.metricsDB.ClearAll()
	b.pingsDB.ClearAll()

	// Recording is gated on the kill switch; lift it briefly to pin the
	// known client id and restore the first run date.
	b.ctx.SetUploadEnabled(true)
	b.core.clientID.SetSync(types.KnownClientID)
	if firstRunDate != nil {
		b.metricsDB.Record(b.core.firstRunDate.Meta(), firstRunDate)
	}
	b.ctx.SetUploadEnabled(false)
}

// Context exposes the SDK context metric and ping types are created on.
func (b *Beacon) Context() *core.Context { return b.ctx }

// NewPing declares a custom ping on this instance.
func (b *Beacon) NewPing(cfg pings.PingTypeConfig) *pings.PingType {
	return pings.NewPingType(b.ctx, cfg, b.logger)
}

// SetLogPings toggles payload logging at runtime.
func (b *Beacon) SetLogPings(flag bool) {
	b.ctx.Dispatcher.Launch(func() error {
		b.ctx.Debug.LogPings = flag
		return nil
	}, "beacon.setLogPings")
}

// SetDebugViewTag routes future pings to the debug view. Invalid tags are
// rejected with a log.
func (b *Beacon) SetDebugViewTag(tag string) {
	if !ValidateDebugViewTag(tag) {
		b.logger.Error("invalid debug view tag", map[string]any{"tag": tag})
		return
	}
	b.ctx.Dispatcher.Launch(func() error {
		b.ctx.Debug.DebugViewTag = tag
		return nil
	}, "beacon.setDebugViewTag")
}

// SetSourceTags annotates future pings. Invalid tag sets are rejected with
// a log.
func (b *Beacon) SetSourceTags(tags []string) {
	if !ValidateSourceTags(tags) {
		b.logger.Error("invalid source tags", map[string]any{"tags": tags})
		return
	}
	b.ctx.Dispatcher.Launch(func() error {
		b.ctx.Debug.SourceTags = tags
		return nil
	}, "beacon.setSourceTags")
}

// UploadStats returns the uploader counters.
func (b *Beacon) UploadStats() upload.Snapshot { return b.uploader.StatsSnapshot() }

// Shutdown drains both dispatcher flows. Recording tasks finish first,
// then in-flight uploads. Blocks until done; the instance is unusable
// afterwards.
func (b *Beacon) Shutdown() {
	b.ctx.Dispatcher.Shutdown()
	b.uploader.Shutdown()
}
