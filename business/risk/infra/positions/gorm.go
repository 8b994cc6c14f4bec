// Package positions provides PositionRepository implementations.
package positions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fd1az/synth-indexer/business/risk/app"
	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/database"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

var _ app.PositionRepository = (*Repository)(nil)

// PositionModel mirrors the positions table maintained by the protocol indexer.
// Amounts are stored as text to keep every digit.
type PositionModel struct {
	ID               string `gorm:"primaryKey;size:128"`
	Asset            string `gorm:"size:32;not null;index"`
	MintedAmount     string `gorm:"size:80;not null"`
	CollateralAmount string `gorm:"size:80;not null"`
	CollateralToken  string `gorm:"size:32;not null"`
}

func (PositionModel) TableName() string {
	return "positions"
}

func toModel(p domain.Position) PositionModel {
	return PositionModel{
		ID:               p.ID,
		Asset:            string(p.Asset),
		MintedAmount:     p.MintedAmount.String(),
		CollateralAmount: p.CollateralAmount.String(),
		CollateralToken:  string(p.CollateralToken),
	}
}

func toDomain(m PositionModel) (domain.Position, error) {
	minted, err := fixedpoint.NewFromString(m.MintedAmount)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position %s minted amount: %w", m.ID, err)
	}
	collateral, err := fixedpoint.NewFromString(m.CollateralAmount)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position %s collateral amount: %w", m.ID, err)
	}
	return domain.Position{
		ID:               m.ID,
		Asset:            asset.Symbol(m.Asset),
		MintedAmount:     minted,
		CollateralAmount: collateral,
		CollateralToken:  asset.Symbol(m.CollateralToken),
	}, nil
}

// Repository reads positions through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the positions table when absent. Used for local runs.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&PositionModel{})
}

// GetPosition loads one position.
func (r *Repository) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	var m PositionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Position{}, apperror.NotFound(apperror.CodePositionNotFound, id)
	}
	if err != nil {
		return domain.Position{}, apperror.Wrap(err, apperror.CodeStoreFailure, "get position "+id)
	}
	return toDomain(m)
}

// ListPositions returns positions matching filter ordered by id.
func (r *Repository) ListPositions(ctx context.Context, filter domain.PositionFilter) ([]domain.Position, error) {
	q := r.db.WithContext(ctx).Model(&PositionModel{}).Order("id ASC")
	if filter.Asset != "" {
		q = q.Where("asset = ?", string(filter.Asset))
	}
	if filter.CollateralToken != "" {
		q = q.Where("collateral_token = ?", string(filter.CollateralToken))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []PositionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "list positions")
	}

	out := make([]domain.Position, 0, len(rows))
	for _, m := range rows {
		p, err := toDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Upsert writes positions, replacing amounts of existing ids. Used to seed local databases.
func (r *Repository) Upsert(ctx context.Context, positions ...domain.Position) error {
	if len(positions) == 0 {
		return nil
	}
	ms := make([]PositionModel, 0, len(positions))
	for _, p := range positions {
		ms = append(ms, toModel(p))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"asset", "minted_amount", "collateral_amount", "collateral_token"}),
	}).Create(&ms).Error
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return database.Ping(ctx, r.db)
}
