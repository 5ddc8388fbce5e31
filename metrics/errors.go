package metrics

import (
	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/types"
)

// ErrorCategory prefixes every error counter's identifier.
const ErrorCategory = "glean.error"

// ErrorManager counts metric recording failures as counters next to the
// metric that failed. The counter identifier is
// "glean.error.<type>/<base identifier>", so in the payload all error counts
// of one category group under a labeled_counter section.
type ErrorManager struct {
	ctx    *core.Context
	logger *log.Logger
}

// Verify ErrorManager implements the context contract.
var _ core.ErrorTracker = (*ErrorManager)(nil)

// NewErrorManager creates an error manager recording through ctx.Metrics.
func NewErrorManager(ctx *core.Context, logger *log.Logger) *ErrorManager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ErrorManager{ctx: ctx, logger: logger}
}

// errorMetricMeta builds the counter metadata for one (metric, error type)
// pair. The label part of labeled submetrics is stripped so every label of a
// metric shares an error count. The counter travels in the same pings as the
// metric it describes.
func errorMetricMeta(src *types.CommonMetricData, errType types.ErrorType) types.CommonMetricData {
	return types.CommonMetricData{
		Category:    ErrorCategory,
		Name:        string(errType) + "/" + types.StripLabel(src.BaseIdentifier()),
		SendInPings: src.SendInPings,
		Lifetime:    types.LifetimePing,
	}
}

// Record logs the failure and bumps the metric's error counter.
func (e *ErrorManager) Record(meta *types.CommonMetricData, errType types.ErrorType, message string, numErrors int) {
	e.logger.Warn("metric recording error", map[string]any{
		"metric":  meta.BaseIdentifier(),
		"type":    string(errType),
		"message": message,
	})
	if numErrors <= 0 {
		return
	}
	errMeta := errorMetricMeta(meta, errType)
	e.ctx.Metrics.Transform(&errMeta, types.KindCounter, types.CounterAdd(int64(numErrors)))
}

// TestGetNumRecordedErrors returns the error count recorded for the metric
// and error type in the given ping (default: the metric's first ping).
// Blocks on the dispatcher.
func (e *ErrorManager) TestGetNumRecordedErrors(meta *types.CommonMetricData, errType types.ErrorType, ping ...string) int64 {
	target := meta.SendInPings[0]
	if len(ping) > 0 {
		target = ping[0]
	}
	var count int64
	_ = e.ctx.Dispatcher.TestLaunch(func() error {
		errMeta := errorMetricMeta(meta, errType)
		if v := e.ctx.Metrics.GetMetric(target, &errMeta, types.KindCounter); v != nil {
			count = int64(v.(types.CounterValue))
		}
		return nil
	})
	return count
}
