package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/dispatcher"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/types"
)

// PingStore is the slice of the pending-ping database the uploader needs.
type PingStore interface {
	DeletePing(identifier string)
}

// Manager drives ping uploads on its own dispatcher flow, decoupled from
// the recording flow. It observes the pending-ping queue, deduplicates
// in-flight identifiers, applies the rate limiter and gives up on pings
// after too many recoverable failures.
type Manager struct {
	ctx      *core.Context
	logger   *log.Logger
	store    PingStore
	uploader Uploader
	policy   Policy
	endpoint string

	dispatch    *dispatcher.Dispatcher
	rateLimiter *RateLimiter
	stats       *Stats

	mu sync.Mutex
	// processing maps in-flight identifiers to whether they belong to a
	// deletion-request ping.
	processing map[string]bool
}

// NewManager wires an upload manager against the given pending-ping store.
// The internal dispatcher starts flushed; uploads run as soon as they are
// enqueued.
func NewManager(ctx *core.Context, store PingStore, uploader Uploader, policy Policy, endpoint string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	d := dispatcher.New(dispatcher.DefaultMaxPreInitQueueSize, logger)
	d.FlushInit(nil)
	return &Manager{
		ctx:         ctx,
		logger:      logger,
		store:       store,
		uploader:    uploader,
		policy:      policy,
		endpoint:    endpoint,
		dispatch:    d,
		rateLimiter: NewRateLimiter(RateLimitInterval, MaxPingsPerInterval),
		stats:       NewStats(),
	}
}

// Update implements the pending-ping queue observer. Called for every
// freshly recorded ping and for every ping replayed at startup.
func (m *Manager) Update(identifier string, ping *types.PendingPing) {
	m.dispatch.Resume()
	m.enqueue(identifier, ping)
}

// takeSlot marks the identifier in flight. taken is false when an upload
// for it is already queued.
func (m *Manager) takeSlot(identifier string, ping *types.PendingPing) (taken, deletionRequest bool) {
	deletionRequest = types.IsDeletionRequestPath(ping.Path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, inFlight := m.processing[identifier]; inFlight {
		return false, deletionRequest
	}
	if m.processing == nil {
		m.processing = make(map[string]bool)
	}
	m.processing[identifier] = deletionRequest
	return true, deletionRequest
}

// enqueue adds an upload task for a ping unless one is already in flight.
func (m *Manager) enqueue(identifier string, ping *types.PendingPing) {
	taken, deletionRequest := m.takeSlot(identifier, ping)
	if !taken {
		m.stats.IncDeduplicated()
		m.logger.Debug("ping upload already in flight", map[string]any{
			"identifier": identifier,
		})
		return
	}

	m.stats.IncEnqueued()
	m.applyRateLimit()
	m.launch(identifier, ping, 0, deletionRequest)
}

// requeue puts a retried ping back on the flow. The in-flight slot is
// released by the caller and retaken here, so a concurrent fresh
// submission of the same identifier wins the slot and carries the upload.
// rateLimit makes the retry spend a window slot like a fresh enqueue.
func (m *Manager) requeue(identifier string, ping *types.PendingPing, retries int, rateLimit bool) {
	taken, deletionRequest := m.takeSlot(identifier, ping)
	if !taken {
		return
	}
	if rateLimit {
		m.applyRateLimit()
	}
	m.launch(identifier, ping, retries, deletionRequest)
}

// applyRateLimit pauses or resumes the upload flow based on the limiter.
// Queued tasks stay queued while throttled; they run once the window
// resets and a later ping resumes the flow.
func (m *Manager) applyRateLimit() {
	state, remaining := m.rateLimiter.GetState()
	switch state {
	case Incrementing:
		m.dispatch.Resume()
	case Throttled:
		m.stats.IncThrottledWait()
		m.dispatch.Stop(false)
		m.logger.Debug("ping upload throttled", map[string]any{
			"resume_in": remaining.Round(time.Second).String(),
		})
	case Stopped:
		m.dispatch.Stop(false)
	}
}

// launch puts the actual upload task on the flow. Deletion-request pings
// ride persistent tasks so a queue clear cannot discard them.
func (m *Manager) launch(identifier string, ping *types.PendingPing, retries int, deletionRequest bool) {
	task := func() error {
		m.attempt(identifier, ping, retries)
		return nil
	}
	name := "upload " + identifier
	if deletionRequest {
		m.dispatch.LaunchPersistent(task, name)
	} else {
		m.dispatch.Launch(task, name)
	}
}

// attempt performs one upload try and routes the result.
func (m *Manager) attempt(identifier string, ping *types.PendingPing, retries int) {
	result, bodyLen := m.uploadOnce(ping)

	switch {
	case result.Status == Success && result.HTTPStatus/100 == 2:
		m.logger.Info("ping uploaded", map[string]any{
			"identifier": identifier,
			"status":     result.HTTPStatus,
		})
		m.stats.IncSucceeded(bodyLen)
		m.store.DeletePing(identifier)
		m.finish(identifier)
	case result.Status == UnrecoverableFailure,
		result.Status == Success && result.HTTPStatus/100 == 4:
		m.logger.Warn("server rejected ping, deleting", map[string]any{
			"identifier": identifier,
			"status":     result.HTTPStatus,
		})
		m.stats.IncDroppedByServer()
		m.store.DeletePing(identifier)
		m.finish(identifier)
	default:
		m.retry(identifier, ping, retries)
	}
}

// retry re-enqueues a failed upload, taking a fresh rate-limiter slot.
// Hitting the recoverable-failure limit stops both the rate limiter and
// the upload flow; the task stays queued with a fresh budget and runs
// when the flow resumes.
func (m *Manager) retry(identifier string, ping *types.PendingPing, retries int) {
	retries++
	m.stats.IncRetry()
	if retries >= m.policy.MaxRecoverableFailures {
		m.logger.Warn("ping hit the upload failure limit, pausing uploads", map[string]any{
			"identifier": identifier,
			"failures":   retries,
		})
		m.stats.IncGaveUp()
		m.rateLimiter.Stop()
		m.dispatch.Stop(true)
		m.finish(identifier)
		// The priority stop above already parks the flow; consulting the
		// just-stopped limiter would queue a second stop command.
		m.requeue(identifier, ping, 0, false)
		return
	}
	m.finish(identifier)
	m.requeue(identifier, ping, retries, true)
}

// finish releases the in-flight slot for an identifier.
func (m *Manager) finish(identifier string) {
	m.mu.Lock()
	delete(m.processing, identifier)
	m.mu.Unlock()
}

// uploadOnce builds the request body and headers and performs one POST.
// Returns the result and the byte size of the body that was (or would
// have been) sent.
func (m *Manager) uploadOnce(ping *types.PendingPing) (UploadResult, int) {
	if !m.ctx.Initialized() {
		// Initialization may still be wiping the databases. Trying again
		// later keeps a doomed ping from going out.
		return UploadResult{Status: RecoverableFailure}, 0
	}

	raw, err := json.Marshal(ping.Payload)
	if err != nil {
		m.logger.Error("cannot serialize ping payload", map[string]any{"error": err.Error()})
		return UploadResult{Status: UnrecoverableFailure}, 0
	}

	body, compressed := compressBody(raw)
	if len(body) > m.policy.MaxPingBodySize {
		m.logger.Warn("ping body exceeds the size limit, discarding", map[string]any{
			"size":  len(body),
			"limit": m.policy.MaxPingBodySize,
		})
		m.stats.IncOversizeDrop()
		return UploadResult{Status: UnrecoverableFailure}, len(body)
	}

	headers := map[string]string{
		"Content-Type":      "application/json; charset=utf-8",
		"Content-Length":    strconv.Itoa(len(body)),
		"Date":              m.ctx.Now().UTC().Format(time.RFC1123),
		"X-Client-Type":     "Beacon",
		"X-Client-Version":  types.SDKVersion,
		"X-Telemetry-Agent": fmt.Sprintf("Beacon/%s (Go)", types.SDKVersion),
	}
	if compressed {
		headers["Content-Encoding"] = "gzip"
	}
	for k, v := range ping.Headers {
		headers[k] = v
	}

	return m.uploader.Upload(context.Background(), m.endpoint+ping.Path, body, headers), len(body)
}

// compressBody gzips the payload. Falls back to the raw body when
// compression fails.
func compressBody(raw []byte) (body []byte, compressed bool) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return raw, false
	}
	if err := w.Close(); err != nil {
		return raw, false
	}
	return buf.Bytes(), true
}

// ClearPendingPingsQueue drops every queued upload except deletion
// requests, which ride persistent tasks and survive the clear.
func (m *Manager) ClearPendingPingsQueue() {
	m.dispatch.Clear()
	m.mu.Lock()
	for identifier, deletionRequest := range m.processing {
		if !deletionRequest {
			delete(m.processing, identifier)
		}
	}
	m.mu.Unlock()
}

// BlockOnUploads waits for every queued upload task to finish. Test
// support.
func (m *Manager) BlockOnUploads() { m.dispatch.BlockOnQueue() }

// SetClock swaps the rate limiter's clock. Test support.
func (m *Manager) SetClock(now func() time.Time) { m.rateLimiter.SetClock(now) }

// StatsSnapshot returns the uploader counters.
func (m *Manager) StatsSnapshot() Snapshot { return m.stats.Snapshot() }

// Shutdown drains the upload flow and stops accepting tasks. Blocks until
// in-flight uploads finish.
func (m *Manager) Shutdown() { m.dispatch.Shutdown() }
