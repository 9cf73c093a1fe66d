package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mverbeek/windmask-monitor/internal/advisory"
	"github.com/mverbeek/windmask-monitor/internal/cache"
	"github.com/mverbeek/windmask-monitor/internal/client"
	"github.com/mverbeek/windmask-monitor/internal/config"
	"github.com/mverbeek/windmask-monitor/internal/models"
	"github.com/mverbeek/windmask-monitor/internal/observability"
)

// ErrUnknownStation is returned for station ids with no configured profile.
var ErrUnknownStation = errors.New("unknown station")

// Station is a configured station profile with its validated threshold.
type Station struct {
	ID        string
	Name      string
	Threshold advisory.ThresholdRange
}

// WindStatusService evaluates the mask advisory for configured stations
// using a cache-aside observation fetch. Observations are cached per
// (station, lookback) pair; the decision itself is recomputed from the
// threshold on every call and never stored.
type WindStatusService struct {
	client   client.DirectionClient
	cache    cache.Cache
	ttl      time.Duration
	stations map[string]Station
	order    []string
}

// NewWindStatusService builds the service from configured station profiles.
// Threshold ranges are validated here; an invalid profile is a startup error.
func NewWindStatusService(directionClient client.DirectionClient, observationCache cache.Cache, ttl time.Duration, profiles []config.StationProfile) (*WindStatusService, error) {
	if len(profiles) == 0 {
		return nil, errors.New("at least one station profile is required")
	}
	stations := make(map[string]Station, len(profiles))
	order := make([]string, 0, len(profiles))
	for _, p := range profiles {
		threshold, err := advisory.NewThresholdRange(p.MinDegrees, p.MaxDegrees)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", p.ID, err)
		}
		if _, dup := stations[p.ID]; dup {
			return nil, fmt.Errorf("station %s: duplicate profile", p.ID)
		}
		stations[p.ID] = Station{ID: p.ID, Name: p.Name, Threshold: threshold}
		order = append(order, p.ID)
	}
	return &WindStatusService{
		client:   directionClient,
		cache:    observationCache,
		ttl:      ttl,
		stations: stations,
		order:    order,
	}, nil
}

// Stations returns the configured profiles in configuration order.
func (s *WindStatusService) Stations() []Station {
	out := make([]Station, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.stations[id])
	}
	return out
}

// DefaultStation returns the first configured profile.
func (s *WindStatusService) DefaultStation() Station {
	return s.stations[s.order[0]]
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// StationStatus evaluates the mask advisory for one station over the given
// lookback window. Cache-aside: a hit within the TTL never touches the
// upstream API; a miss performs exactly one fetch and populates the cache.
// An observation without a usable sample is a valid "unknown" result, not
// an error.
func (s *WindStatusService) StationStatus(ctx context.Context, stationID string, lookbackHours int) (models.StationStatus, error) {
	station, ok := s.stations[stationID]
	if !ok {
		return models.StationStatus{}, fmt.Errorf("%w: %s", ErrUnknownStation, stationID)
	}

	logger := loggerFromContext(ctx)
	key := cache.Key(stationID, lookbackHours)

	obs, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
	} else if hit {
		observability.CacheHitsTotal.WithLabelValues("observation").Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("key", key))
		}
		return s.evaluate(station, obs), nil
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("key", key))
	}

	obs, err = s.client.LatestDirection(ctx, stationID, time.Duration(lookbackHours)*time.Hour)
	if err != nil {
		observability.EDRAPIErrorsTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
		return models.StationStatus{}, fmt.Errorf("fetch wind direction for %s: %w", stationID, err)
	}

	if setErr := s.cache.Set(ctx, key, obs, s.ttl); setErr != nil {
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	return s.evaluate(station, obs), nil
}

// evaluate derives the decision from the observation and threshold. Pure
// apart from the outcome metric.
func (s *WindStatusService) evaluate(station Station, obs models.Observation) models.StationStatus {
	required := station.Threshold.RequiresProtectiveAction(obs.Direction)
	observability.RecordAdvisoryOutcome(obs.HasReading(), required)
	return models.StationStatus{
		StationID:    station.ID,
		StationName:  station.Name,
		Observation:  obs,
		MaskRequired: required,
		MinDegrees:   station.Threshold.MinDegrees,
		MaxDegrees:   station.Threshold.MaxDegrees,
	}
}
