package main

import (
	"context"
	"slices"
	"strings"
	"time"

	engineApp "github.com/fd1az/synth-indexer/business/engine/app"
	engineDI "github.com/fd1az/synth-indexer/business/engine/di"
	marketDomain "github.com/fd1az/synth-indexer/business/market/domain"
	pricingApp "github.com/fd1az/synth-indexer/business/pricing/app"
	pricingDI "github.com/fd1az/synth-indexer/business/pricing/di"
	riskApp "github.com/fd1az/synth-indexer/business/risk/app"
	riskDI "github.com/fd1az/synth-indexer/business/risk/di"
	riskDomain "github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/health"
	"github.com/fd1az/synth-indexer/internal/monolith"
	"github.com/fd1az/synth-indexer/pkg/ui"
	"github.com/fd1az/synth-indexer/pkg/ui/components"
)

// evaluator is the read side of the health server.
type evaluator interface {
	Evaluate(ctx context.Context) health.Status
}

// dashboard turns engine reads into dashboard snapshots.
type dashboard struct {
	engine    *engineApp.Engine
	positions riskApp.PositionRepository
	sources   []pricingApp.PriceSource
	interval  marketDomain.Interval
	health    evaluator
}

func newDashboard(mono *monolith.App, checks evaluator) *dashboard {
	intervals, _ := marketDomain.ParseIntervals(mono.Config().Ingestion.Intervals)
	finest, _ := marketDomain.Finest(intervals)

	return &dashboard{
		engine:    engineDI.GetEngine(mono.Services()),
		positions: riskDI.GetPositions(mono.Services()),
		sources:   pricingDI.GetSources(mono.Services()),
		interval:  finest,
		health:    checks,
	}
}

// symbols is the sorted union of every source's symbols.
func (d *dashboard) symbols() []asset.Symbol {
	var out []asset.Symbol
	for _, src := range d.sources {
		for _, sym := range src.Symbols() {
			if !slices.Contains(out, sym) {
				out = append(out, sym)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Snapshot reads prices, the last candle, ratios and health. Per-symbol misses are shown
// in the row; a failing position scan fails the snapshot.
func (d *dashboard) Snapshot(ctx context.Context) (ui.SnapshotMsg, error) {
	snap := ui.SnapshotMsg{
		Interval:    d.interval.String(),
		LostCandles: d.engine.LostCandles(),
		At:          time.Now(),
	}

	for _, sym := range d.symbols() {
		row := components.PriceRow{Symbol: sym.String()}
		price, err := d.engine.LatestPrice(ctx, sym)
		if err != nil {
			row.Err = err.Error()
			snap.Prices = append(snap.Prices, row)
			continue
		}
		row.Price = price

		if c, err := d.engine.LatestCandle(ctx, sym, d.interval.String()); err == nil {
			row.Candle = &components.CandleView{
				Interval:    c.Interval.String(),
				BucketStart: c.BucketStart,
				Open:        c.Open,
				High:        c.High,
				Low:         c.Low,
				Close:       c.Close,
				Count:       c.ObservationCount,
			}
		}
		snap.Prices = append(snap.Prices, row)
	}

	scan, err := d.engine.ScanPositions(ctx, riskDomain.PositionFilter{})
	if err != nil {
		return ui.SnapshotMsg{}, err
	}
	snap.Undefined = scan.Undefined
	snap.Unpriced = scan.Unpriced

	positions, err := d.positions.ListPositions(ctx, riskDomain.PositionFilter{})
	if err != nil {
		return ui.SnapshotMsg{}, err
	}
	byID := make(map[string]riskDomain.Position, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
	}

	for _, r := range scan.Ratios {
		p := byID[r.PositionID]
		snap.Positions = append(snap.Positions, components.PositionRow{
			ID:              r.PositionID,
			Asset:           p.Asset.String(),
			CollateralToken: p.CollateralToken.String(),
			Ratio:           r.Ratio,
			MintValue:       r.MintValue,
			CollateralValue: r.CollateralValue,
			Risk:            r.Risk.String(),
		})
	}

	status := d.health.Evaluate(ctx)
	for name, c := range status.Checks {
		snap.Checks = append(snap.Checks, components.CheckStatus{Name: name, Healthy: c.Healthy, Message: c.Message})
	}
	slices.SortFunc(snap.Checks, func(a, b components.CheckStatus) int {
		return strings.Compare(a.Name, b.Name)
	})

	return snap, nil
}
