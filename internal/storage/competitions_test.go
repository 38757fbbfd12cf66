package storage

import (
	"context"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// newTestPostgres connects to the database named by TEST_DATABASE_URL and
// clears the driver tables. Tests are skipped when no database is available.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`DELETE FROM solver_competitions`)
	db.MustExec(`DELETE FROM auctions`)
	return NewPostgres(db, logger.NewNop())
}

func TestCompetitionRoundTrip(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	txHash := common.HexToHash("0x0505050505050505050505050505050505050505050505050505050505050505")
	record := &domain.SolverCompetition{
		AuctionID:                  7,
		GasPrice:                   1,
		AuctionStartBlock:          2,
		LiquidityCollectedBlock:    3,
		CompetitionSimulationBlock: 4,
		TransactionHash:            &txHash,
		Auction: domain.CompetitionAuction{
			Orders: []domain.OrderUID{{}},
			Prices: map[common.Address]*domain.U256{
				{}: domain.U256FromUint64(1),
			},
		},
		Solutions: []domain.SolverSettlement{{
			Solver: "test-solver",
			ClearingPrices: map[common.Address]*domain.U256{
				{}: domain.U256FromUint64(2),
			},
			Orders:   []domain.ExecutedOrder{{ExecutedAmount: domain.U256FromUint64(3)}},
			CallData: []byte{1, 2},
		}},
	}
	require.NoError(t, p.SaveCompetition(ctx, record))

	loaded, err := p.LoadCompetition(ctx, ByID(7))
	require.NoError(t, err)
	assert.Equal(t, record, loaded)

	byTx, err := p.LoadCompetition(ctx, ByTransaction(txHash))
	require.NoError(t, err)
	assert.Equal(t, record, byTx)
}

func TestCompetitionNotFound(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	_, err := p.LoadCompetition(ctx, ByTransaction(common.Hash{}))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.LoadCompetition(ctx, ByID(123456))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceCurrentAuctionKeepsSingleSlot(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	first, err := p.ReplaceCurrentAuction(ctx, &domain.Auction{LatestSettlementBlock: 1})
	require.NoError(t, err)
	second, err := p.ReplaceCurrentAuction(ctx, &domain.Auction{LatestSettlementBlock: 2})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	var count int
	require.NoError(t, p.db.Get(&count, `SELECT COUNT(*) FROM auctions`))
	assert.Equal(t, 1, count)

	current, err := p.MostRecentAuction(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second, current.ID)
	assert.Equal(t, uint64(2), current.Auction.LatestSettlementBlock)
}

func TestMostRecentAuctionEmpty(t *testing.T) {
	p := newTestPostgres(t)

	current, err := p.MostRecentAuction(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}
