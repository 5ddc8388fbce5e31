package pings

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/types"
)

// CollectionHook can rewrite a ping payload right before it is queued for
// upload, e.g. to encrypt it. A non-nil error vetoes the ping.
type CollectionHook func(payload map[string]any) (map[string]any, error)

// PingTypeConfig declares a custom ping.
type PingTypeConfig struct {
	// Name is the ping's name as it appears in the submission path.
	Name string
	// IncludeClientID puts client_id into the ping's client_info.
	IncludeClientID bool
	// SendIfEmpty submits the ping even when no metrics or events were
	// recorded for it.
	SendIfEmpty bool
	// ReasonCodes is the closed set of accepted submission reasons.
	ReasonCodes []string
	// AfterCollection is the optional payload rewrite hook.
	AfterCollection CollectionHook
}

// PingType is the submission handle for one declared ping.
type PingType struct {
	ctx    *core.Context
	logger *log.Logger
	maker  *Maker

	name            string
	includeClientID bool
	sendIfEmpty     bool
	reasonCodes     []string
	afterCollection CollectionHook

	// testCallback fires once on the next submission's dispatcher task.
	testCallback func(reason string)
}

// NewPingType declares a ping on the given SDK context.
func NewPingType(ctx *core.Context, cfg PingTypeConfig, logger *log.Logger) *PingType {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PingType{
		ctx:             ctx,
		logger:          logger,
		maker:           NewMaker(ctx, logger),
		name:            cfg.Name,
		includeClientID: cfg.IncludeClientID,
		sendIfEmpty:     cfg.SendIfEmpty,
		reasonCodes:     cfg.ReasonCodes,
		afterCollection: cfg.AfterCollection,
	}
}

// Name returns the ping's name.
func (p *PingType) Name() string { return p.name }

// Submit collects and queues the ping for upload. An unknown reason is
// dropped from the submission but does not block it.
func (p *PingType) Submit(reason string) {
	p.ctx.Dispatcher.Launch(func() error {
		return p.submitSync(reason)
	}, "ping.submit")
}

// submitSync performs the submission on the dispatcher flow. The SDK core
// calls it directly for the deletion-request ping, which must go out inside
// the upload-disable transition.
func (p *PingType) submitSync(reason string) error {
	if p.testCallback != nil {
		cb := p.testCallback
		p.testCallback = nil
		cb(reason)
	}
	if !p.ctx.Initialized() {
		p.logger.Info("SDK not initialized, ping discarded", map[string]any{"ping": p.name})
		return nil
	}
	if !p.ctx.UploadEnabled() && p.name != types.DeletionRequestPingName {
		p.logger.Info("upload disabled, ping discarded", map[string]any{"ping": p.name})
		return nil
	}
	if reason != "" && !slices.Contains(p.reasonCodes, reason) {
		p.logger.Error("invalid reason code, submitting without reason", map[string]any{
			"ping":   p.name,
			"reason": reason,
		})
		reason = ""
	}
	p.maker.CollectAndStore(p, reason, uuid.NewString())
	return nil
}

// SubmitSync is the undispatched submission path. Only for use on the
// dispatcher flow.
func (p *PingType) SubmitSync(reason string) error { return p.submitSync(reason) }

// TestBeforeNextSubmit registers a callback observing the next submission
// from inside its dispatcher task, before collection happens. Blocks until
// registered.
func (p *PingType) TestBeforeNextSubmit(cb func(reason string)) error {
	if p.testCallback != nil {
		return fmt.Errorf("ping %q already has a pending test callback", p.name)
	}
	return p.ctx.Dispatcher.TestLaunch(func() error {
		p.testCallback = cb
		return nil
	})
}
