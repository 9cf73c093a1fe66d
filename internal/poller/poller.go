package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mverbeek/windmask-monitor/internal/models"
	"github.com/mverbeek/windmask-monitor/internal/observability"
)

// StatusFetcher is implemented by the service layer. The poller goes through
// it so each background evaluation populates the shared observation cache.
type StatusFetcher interface {
	StationStatus(ctx context.Context, stationID string, lookbackHours int) (models.StationStatus, error)
}

// Poller keeps the observation cache warm by re-evaluating every configured
// station on a fixed schedule. Dashboard auto-refresh then serves from cache
// instead of hitting the upstream API per render. Each run is an independent
// attempt; a failed station is logged and retried on the next tick only.
type Poller struct {
	cron          *cron.Cron
	fetcher       StatusFetcher
	stationIDs    []string
	lookbackHours int
	fetchTimeout  time.Duration
	logger        *zap.Logger
}

// New creates a Poller covering the given stations at the given lookback.
func New(fetcher StatusFetcher, stationIDs []string, lookbackHours int, fetchTimeout time.Duration, logger *zap.Logger) *Poller {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Poller{
		cron:          cron.New(),
		fetcher:       fetcher,
		stationIDs:    stationIDs,
		lookbackHours: lookbackHours,
		fetchTimeout:  fetchTimeout,
		logger:        logger,
	}
}

// Start registers the recurring job and runs one immediate refresh so the
// first dashboard render hits a warm cache.
func (p *Poller) Start(interval time.Duration) error {
	if len(p.stationIDs) == 0 {
		if p.logger != nil {
			p.logger.Info("poller: no stations configured; nothing to schedule")
		}
		return nil
	}
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), p.RefreshAll); err != nil {
		return fmt.Errorf("register poll job: %w", err)
	}
	p.cron.Start()
	go p.RefreshAll()
	if p.logger != nil {
		p.logger.Info("poller started", zap.Duration("interval", interval), zap.Int("stations", len(p.stationIDs)))
	}
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	if p.logger != nil {
		p.logger.Info("poller stopped")
	}
}

// RefreshAll evaluates every station once. Exported for the initial warm-up
// and for tests.
func (p *Poller) RefreshAll() {
	observability.PollerRunsTotal.Inc()
	for _, id := range p.stationIDs {
		ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
		status, err := p.fetcher.StationStatus(ctx, id, p.lookbackHours)
		cancel()
		if err != nil {
			observability.PollerErrorsTotal.WithLabelValues(id).Inc()
			if p.logger != nil {
				p.logger.Warn("poll failed", zap.String("station", id), zap.Error(err))
			}
			continue
		}
		if p.logger != nil {
			p.logger.Debug("poll complete",
				zap.String("station", id),
				zap.Bool("maskRequired", status.MaskRequired),
				zap.Bool("hasReading", status.Observation.HasReading()))
		}
	}
}
