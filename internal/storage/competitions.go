package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DimaJoyti/auction-driver/internal/domain"
)

// ErrNotFound is returned when no competition record matches the identifier.
// It is a first-class outcome, distinct from infrastructure errors.
var ErrNotFound = errors.New("solver competition not found")

// Identifier selects a competition record by auction ID or by the hash of
// its settlement transaction.
type Identifier struct {
	id     *domain.AuctionID
	txHash *common.Hash
}

// ByID identifies a record by auction ID
func ByID(id domain.AuctionID) Identifier {
	return Identifier{id: &id}
}

// ByTransaction identifies a record by settlement transaction hash
func ByTransaction(hash common.Hash) Identifier {
	return Identifier{txHash: &hash}
}

// ID returns the auction ID selector, if this identifier carries one
func (i Identifier) ID() (domain.AuctionID, bool) {
	if i.id == nil {
		return 0, false
	}
	return *i.id, true
}

// Transaction returns the transaction hash selector, if this identifier
// carries one
func (i Identifier) Transaction() (common.Hash, bool) {
	if i.txHash == nil {
		return common.Hash{}, false
	}
	return *i.txHash, true
}

// SaveCompetition inserts the per-auction competition record, additionally
// indexed by transaction hash when one is present.
func (p *Postgres) SaveCompetition(ctx context.Context, record *domain.SolverCompetition) error {
	defer observe("save_solver_competition")()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode solver competition: %w", err)
	}

	var txHash []byte
	if record.TransactionHash != nil {
		txHash = record.TransactionHash.Bytes()
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO solver_competitions (id, json, tx_hash) VALUES ($1, $2, $3)`,
		int64(record.AuctionID), string(data), txHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert solver competition: %w", err)
	}
	return nil
}

// LoadCompetition loads a competition record. Returns ErrNotFound when no
// record matches.
func (p *Postgres) LoadCompetition(ctx context.Context, id Identifier) (*domain.SolverCompetition, error) {
	defer observe("load_solver_competition")()

	var data []byte
	var err error
	switch {
	case id.id != nil:
		err = p.db.GetContext(ctx, &data,
			`SELECT json FROM solver_competitions WHERE id = $1`, int64(*id.id))
	case id.txHash != nil:
		err = p.db.GetContext(ctx, &data,
			`SELECT json FROM solver_competitions WHERE tx_hash = $1`, id.txHash.Bytes())
	default:
		return nil, errors.New("empty competition identifier")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load solver competition: %w", err)
	}

	var record domain.SolverCompetition
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode solver competition: %w", err)
	}
	return &record, nil
}
