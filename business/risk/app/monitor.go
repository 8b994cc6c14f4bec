package app

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/logger"
)

// Scanner computes ratios for every matching position.
type Scanner interface {
	ScanPositions(ctx context.Context, filter domain.PositionFilter) (ScanResult, error)
}

// Monitor rescans all positions on a fixed interval and reports band changes.
// Positions first seen as safe are not reported.
type Monitor struct {
	scanner  Scanner
	reporter Reporter
	interval time.Duration
	logger   logger.LoggerInterface

	mu      sync.Mutex
	last    map[string]domain.Risk
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewMonitor creates a monitor scanning every interval.
func NewMonitor(scanner Scanner, reporter Reporter, interval time.Duration, log logger.LoggerInterface) (*Monitor, error) {
	if interval <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("scan interval must be positive"))
	}
	return &Monitor{
		scanner:  scanner,
		reporter: reporter,
		interval: interval,
		logger:   log,
		last:     make(map[string]domain.Risk),
	}, nil
}

// Start starts the reporter and the scan loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if err := m.reporter.Start(ctx); err != nil {
		return err
	}
	m.running = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info(ctx, "risk monitor started", "interval", m.interval)
	return nil
}

// Stop ends the scan loop and stops the reporter.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	return m.reporter.Stop()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn(ctx, "risk scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce runs one scan and reports every position whose band changed since the last one.
// On error the previous bands are kept. A position missing from a scan, such as one whose
// asset has no price yet, keeps its last band.
func (m *Monitor) ScanOnce(ctx context.Context) ([]domain.Alert, error) {
	res, err := m.scanner.ScanPositions(ctx, domain.PositionFilter{})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var alerts []domain.Alert
	for _, r := range res.Ratios {
		prev := m.last[r.PositionID]
		m.last[r.PositionID] = r.Risk

		if prev == r.Risk || (prev == "" && r.Risk == domain.RiskSafe) {
			continue
		}
		alerts = append(alerts, domain.Alert{
			PositionID: r.PositionID,
			From:       prev,
			To:         r.Risk,
			Ratio:      r.Ratio,
			At:         r.ComputedAt,
		})
	}
	m.mu.Unlock()

	for _, a := range alerts {
		m.reporter.Report(a)
	}
	return alerts, nil
}
