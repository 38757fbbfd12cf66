package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/domain"
)

// ReplaceCurrentAuction atomically replaces the single current-auction slot
// and returns the monotonic ID assigned to the new auction. Readers observe
// either the previous auction or the new one, never both and never neither.
func (p *Postgres) ReplaceCurrentAuction(ctx context.Context, auction *domain.Auction) (domain.AuctionID, error) {
	defer observe("replace_auction")()

	data, err := json.Marshal(auction)
	if err != nil {
		return 0, fmt.Errorf("failed to encode auction: %w", err)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auctions`); err != nil {
		return 0, fmt.Errorf("failed to delete previous auction: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO auctions (json, created_at) VALUES ($1, now()) RETURNING id`,
		string(data),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert auction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit auction replacement: %w", err)
	}

	p.logger.Debug("Replaced current auction",
		zap.Int64("auction_id", id),
		zap.Int("orders", len(auction.Orders)))
	return domain.AuctionID(id), nil
}

// MostRecentAuction loads the current auction together with its assigned ID.
// Returns nil when no auction was ever saved.
func (p *Postgres) MostRecentAuction(ctx context.Context) (*domain.AuctionWithID, error) {
	defer observe("load_most_recent_auction")()

	var row struct {
		ID   int64  `db:"id"`
		JSON []byte `db:"json"`
	}
	err := p.db.GetContext(ctx, &row,
		`SELECT id, json FROM auctions ORDER BY id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current auction: %w", err)
	}

	var auction domain.Auction
	if err := json.Unmarshal(row.JSON, &auction); err != nil {
		return nil, fmt.Errorf("failed to decode auction: %w", err)
	}
	return &domain.AuctionWithID{
		ID:      domain.AuctionID(row.ID),
		Auction: auction,
	}, nil
}
