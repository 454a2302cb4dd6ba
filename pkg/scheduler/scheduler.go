// Package scheduler runs the periodic refresh jobs that keep stored weather
// data converging toward the provider's.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/models"
	"github.com/Zutavern/apo-sub001/pkg/repositories"
	"github.com/Zutavern/apo-sub001/pkg/services"
)

// jobTimeout bounds one full refresh pass for one location.
const jobTimeout = 2 * time.Minute

// Scheduler drives periodic current/forecast refreshes for every registered
// location, plus a daily pass over the derived forecast kinds.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       config.SchedulerConfig
	refresh   services.RefreshService
	locations repositories.LocationRepository
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(cfg config.SchedulerConfig, refresh services.RefreshService, locations repositories.LocationRepository, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		refresh:   refresh,
		locations: locations,
		logger:    logger,
	}
}

// Start schedules the refresh jobs and starts the underlying scheduler. With
// scheduling disabled in config it is a no-op.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled by configuration")
		return nil
	}

	minutes := int(s.cfg.Interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.runWeatherPass); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At("05:30").Do(s.runDomainPass); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("Scheduler started",
		zap.Int("interval_minutes", minutes),
		zap.Int("forecast_days", s.cfg.ForecastDays))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// runWeatherPass refreshes the current observation and forecast window for
// every location. One location failing does not block the others.
func (s *Scheduler) runWeatherPass() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	locations, err := s.locations.List(ctx)
	if err != nil {
		s.logger.Error("Scheduled refresh could not list locations", zap.Error(err))
		return
	}

	for _, loc := range locations {
		if _, err := s.refresh.RefreshCurrent(ctx, loc.Name); err != nil {
			s.logger.Warn("Scheduled current refresh failed",
				zap.String("location", loc.Name),
				zap.Error(err))
		}
		if _, err := s.refresh.RefreshForecastWindow(ctx, loc.Name, s.cfg.ForecastDays); err != nil {
			s.logger.Warn("Scheduled forecast refresh failed",
				zap.String("location", loc.Name),
				zap.Error(err))
		}
	}
}

// runDomainPass refreshes every derived dataset for every location once a
// day, early enough for the morning kiosk rotation.
func (s *Scheduler) runDomainPass() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	locations, err := s.locations.List(ctx)
	if err != nil {
		s.logger.Error("Scheduled domain refresh could not list locations", zap.Error(err))
		return
	}

	for _, loc := range locations {
		for _, kind := range models.ForecastKinds {
			if _, err := s.refresh.RefreshDomainForecast(ctx, kind, loc.Name, services.FaultNone); err != nil {
				s.logger.Warn("Scheduled domain refresh failed",
					zap.String("location", loc.Name),
					zap.String("kind", string(kind)),
					zap.Error(err))
			}
		}
	}
}
