package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers route generation on a cron schedule. Generation is also
// reachable on demand through the HTTP API; both paths share the planner and
// its conditional shipment claiming, so overlapping runs stay safe.
type Scheduler struct {
	cron    *cron.Cron
	planner *RoutePlanner
	logger  *slog.Logger
}

func NewScheduler(planner *RoutePlanner, spec string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		planner: planner,
		logger:  logger,
	}

	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.planner.GenerateRoutes(context.Background()); err != nil {
			s.logger.Error("scheduled route generation failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("route generation scheduled", slog.String("cron", spec))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
