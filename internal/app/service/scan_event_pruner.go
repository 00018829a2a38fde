package service

import (
	"context"
	"time"

	"github.com/sifan077/PowerQR/internal/app/repository"
	"go.uber.org/zap"
)

// ScanEventPruner periodically deletes scan events older than the retention window.
type ScanEventPruner struct {
	logger    *zap.Logger
	repo      repository.ScanEventRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

// NewScanEventPruner creates a new scan event pruner.
func NewScanEventPruner(logger *zap.Logger, repo repository.ScanEventRepository, retention, interval time.Duration) *ScanEventPruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ScanEventPruner{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic pruning.
func (p *ScanEventPruner) Start() {
	go p.run()
}

// Stop stops the periodic pruning.
func (p *ScanEventPruner) Stop() {
	close(p.stopChan)
}

func (p *ScanEventPruner) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune(context.Background())
		case <-p.stopChan:
			p.logger.Info("scan event pruner stopped")
			return
		}
	}
}

func (p *ScanEventPruner) prune(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	before := p.now().Add(-p.retention)

	affected, err := p.repo.DeleteOlderThan(ctx, before)
	if err != nil {
		p.logger.Error("failed to prune scan events", zap.Error(err))
		return
	}

	if affected > 0 {
		p.logger.Info("pruned expired scan events",
			zap.Int64("count", affected),
			zap.Time("before", before),
		)
	}
}
