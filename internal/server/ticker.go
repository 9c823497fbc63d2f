package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickerService runs a function on a fixed interval until stopped.
// A failing tick is logged and does not stop the service.
type TickerService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewTickerService creates a TickerService.
//
// Precondition: interval must be positive; fn and logger must be non-nil.
func NewTickerService(name string, interval time.Duration, fn func(ctx context.Context) error, logger *zap.Logger) *TickerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerService{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start blocks, invoking fn once per interval, until Stop is called.
func (s *TickerService) Start() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(s.ctx, s.interval)
			if err := s.fn(tickCtx); err != nil {
				s.logger.Warn("tick failed",
					zap.String("service", s.name),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
}

// Stop ends the ticker loop. Safe to call more than once.
func (s *TickerService) Stop() {
	s.once.Do(s.cancel)
}
