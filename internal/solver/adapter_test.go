package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

type fakeSolver struct {
	solutions []*settlement.Settlement
	err       error
}

func (f *fakeSolver) Solve(context.Context, *Auction) ([]*settlement.Settlement, error) {
	return f.solutions, f.err
}

func (f *fakeSolver) Name() string            { return "fake" }
func (f *fakeSolver) Account() common.Address { return common.HexToAddress("0x01") }

func settlementFixture(executed uint64) *settlement.Settlement {
	var uidBytes domain.OrderUID
	uidBytes[0] = byte(executed)
	return &settlement.Settlement{
		ClearingPrices: map[common.Address]*domain.U256{
			common.HexToAddress("0x02"): domain.U256FromUint64(1000),
		},
		Trades: []settlement.Trade{{
			Order:          domain.Order{Metadata: domain.OrderMetadata{UID: uidBytes}},
			ExecutedAmount: domain.U256FromUint64(executed),
		}},
		CallData: []byte{0xca, 0x11},
	}
}

func TestCommitThenRevealReturnsMatchingSettlement(t *testing.T) {
	st := settlementFixture(5)
	adapter := NewCommitRevealAdapter(&fakeSolver{solutions: []*settlement.Settlement{st}}, logger.NewNop())

	summary, err := adapter.Commit(context.Background(), &Auction{})
	require.NoError(t, err)
	require.Len(t, summary.Orders, 1)

	revealed, err := adapter.Reveal(context.Background(), summary)
	require.NoError(t, err)
	assert.Same(t, st, revealed)
}

func TestRevealUnknownSummary(t *testing.T) {
	adapter := NewCommitRevealAdapter(&fakeSolver{}, logger.NewNop())

	_, err := adapter.Reveal(context.Background(), &SettlementSummary{GasEstimate: 9})
	assert.ErrorContains(t, err, "no settlement matching the summary")
}

func TestCommitSupersededSummariesStayRevealable(t *testing.T) {
	first := settlementFixture(1)
	second := settlementFixture(2)
	inner := &fakeSolver{solutions: []*settlement.Settlement{first}}
	adapter := NewCommitRevealAdapter(inner, logger.NewNop())

	firstSummary, err := adapter.Commit(context.Background(), &Auction{})
	require.NoError(t, err)

	inner.solutions = []*settlement.Settlement{second}
	secondSummary, err := adapter.Commit(context.Background(), &Auction{})
	require.NoError(t, err)
	assert.NotEqual(t, firstSummary, secondSummary)

	revealed, err := adapter.Reveal(context.Background(), secondSummary)
	require.NoError(t, err)
	assert.Same(t, second, revealed)

	revealed, err = adapter.Reveal(context.Background(), firstSummary)
	require.NoError(t, err)
	assert.Same(t, first, revealed)
}

func TestCommitNoSolution(t *testing.T) {
	adapter := NewCommitRevealAdapter(&fakeSolver{}, logger.NewNop())
	_, err := adapter.Commit(context.Background(), &Auction{})
	assert.EqualError(t, err, "solver found no solution")
}

func TestCommitPropagatesSolverError(t *testing.T) {
	adapter := NewCommitRevealAdapter(&fakeSolver{err: errors.New("infeasible")}, logger.NewNop())
	_, err := adapter.Commit(context.Background(), &Auction{})
	assert.EqualError(t, err, "infeasible")
}

func TestAdapterExposesInnerIdentity(t *testing.T) {
	adapter := NewCommitRevealAdapter(&fakeSolver{}, logger.NewNop())
	assert.Equal(t, "fake", adapter.Name())
	assert.Equal(t, common.HexToAddress("0x01"), adapter.Account())
}
