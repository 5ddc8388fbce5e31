package beacon

import (
	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/metrics"
	"github.com/pellucid-io/beacon/platform"
	"github.com/pellucid-io/beacon/types"
)

// coreMetrics are the built-in metrics every ping's client_info section is
// assembled from.
type coreMetrics struct {
	clientID     *metrics.UUIDMetric
	firstRunDate *metrics.DatetimeMetric

	os                *metrics.StringMetric
	osVersion         *metrics.StringMetric
	architecture      *metrics.StringMetric
	locale            *metrics.StringMetric
	appBuild          *metrics.StringMetric
	appDisplayVersion *metrics.StringMetric
}

func clientInfoMeta(name string, lifetime types.Lifetime) types.CommonMetricData {
	return types.CommonMetricData{
		Name:        name,
		SendInPings: []string{types.ClientInfoStorage},
		Lifetime:    lifetime,
	}
}

func newCoreMetrics(ctx *core.Context) *coreMetrics {
	return &coreMetrics{
		clientID:          metrics.NewUUID(ctx, clientInfoMeta("client_id", types.LifetimeUser)),
		firstRunDate:      metrics.NewDatetime(ctx, clientInfoMeta("first_run_date", types.LifetimeUser), types.UnitDay),
		os:                metrics.NewString(ctx, clientInfoMeta("os", types.LifetimeApplication)),
		osVersion:         metrics.NewString(ctx, clientInfoMeta("os_version", types.LifetimeApplication)),
		architecture:      metrics.NewString(ctx, clientInfoMeta("architecture", types.LifetimeApplication)),
		locale:            metrics.NewString(ctx, clientInfoMeta("locale", types.LifetimeApplication)),
		appBuild:          metrics.NewString(ctx, clientInfoMeta("app_build", types.LifetimeApplication)),
		appDisplayVersion: metrics.NewString(ctx, clientInfoMeta("app_display_version", types.LifetimeApplication)),
	}
}

// initialize records the client info. Runs on the dispatcher flow, during
// SDK initialization and again when upload flips back on.
func (c *coreMetrics) initialize(b *Beacon, info platform.Info) {
	c.ensureClientID(b)
	c.ensureFirstRunDate(b)

	c.os.SetSync(info.OS())
	c.osVersion.SetSync(info.OSVersion())
	c.architecture.SetSync(info.Arch())
	c.locale.SetSync(info.Locale())

	build := b.cfg.AppBuild
	if build == "" {
		build = "Unknown"
	}
	c.appBuild.SetSync(build)
	version := b.cfg.AppDisplayVersion
	if version == "" {
		version = "Unknown"
	}
	c.appDisplayVersion.SetSync(version)
}

// ensureClientID generates a fresh client id unless a real one is already
// stored. The pan-client known id left behind by an upload-disabled period
// counts as absent.
func (c *coreMetrics) ensureClientID(b *Beacon) {
	stored := b.metricsDB.GetMetric(types.ClientInfoStorage, c.clientID.Meta(), types.KindUUID)
	if stored != nil {
		if id, ok := stored.Stored().(string); ok && id != types.KnownClientID {
			return
		}
	}
	c.clientID.GenerateAndSetSync()
}

// ensureFirstRunDate records today as the first run date, once per profile.
func (c *coreMetrics) ensureFirstRunDate(b *Beacon) {
	stored := b.metricsDB.GetMetric(types.ClientInfoStorage, c.firstRunDate.Meta(), types.KindDatetime)
	if stored != nil {
		return
	}
	c.firstRunDate.SetTimeSync(b.ctx.Now())
}
