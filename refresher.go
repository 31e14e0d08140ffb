package sdk

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CardaLabs/sdk/internal/cache"
	"github.com/CardaLabs/sdk/internal/config"
	"github.com/CardaLabs/sdk/internal/domain"
	"github.com/CardaLabs/sdk/pkg/logger"
)

const refreshTimeout = 45 * time.Second

// Refresher keeps configured hot entities warm in the cache by re-running
// their aggregations on a cron schedule, so interactive requests hit cache
// instead of the providers.
type Refresher struct {
	client *Client
	cfg    config.RefreshConfig
	log    *logger.Logger
	cron   *cron.Cron
}

func newRefresher(c *Client, cfg config.RefreshConfig, log *logger.Logger) *Refresher {
	return &Refresher{
		client: c,
		cfg:    cfg,
		log:    log,
		cron:   cron.New(),
	}
}

// Start schedules the refresh job. An invalid schedule is logged and the
// refresher stays idle.
func (r *Refresher) Start() {
	if _, err := r.cron.AddFunc(r.cfg.Schedule, r.refresh); err != nil {
		r.log.WithError(err).Warnf("invalid refresh schedule %q", r.cfg.Schedule)
		return
	}
	r.cron.Start()
	r.log.WithField("schedule", r.cfg.Schedule).Info("cache refresher started")
}

// Stop halts scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	opts := &domain.RequestOptions{SkipCache: true}
	for _, unit := range r.cfg.Tokens {
		fields := r.cfg.Fields
		if len(fields) == 0 {
			fields = domain.TokenFields
		}
		resp, err := r.client.GetTokenData(ctx, unit, fields, opts)
		if err != nil {
			r.log.WithError(err).Warnf("token refresh failed for %s", unit)
			continue
		}
		if len(resp.Metadata.DataSources) > 0 {
			r.client.store(ctx, cache.BuildTokenKey(unit, fields), resp, opts)
		}
	}
	for _, address := range r.cfg.Wallets {
		resp, err := r.client.GetWalletData(ctx, address, domain.WalletFields, opts)
		if err != nil {
			r.log.WithError(err).Warnf("wallet refresh failed for %s", address)
			continue
		}
		if len(resp.Metadata.DataSources) > 0 {
			r.client.store(ctx, cache.BuildWalletKey(address, domain.WalletFields), resp, opts)
		}
	}
}
