package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// Solver is the classic one-shot solver capability set: given an auction it
// proposes independent settlements.
type Solver interface {
	Solve(ctx context.Context, auction *Auction) ([]*settlement.Settlement, error)
	Name() string
	Account() common.Address
}

// CommitRevealAdapter lifts a one-shot Solver into the commit/reveal
// contract. Each commit runs the solver and remembers which settlement
// produced the returned summary so reveal can hand back the matching
// settlement later. The adapter is safe for concurrent use; the commit loop
// and the reveal run on different goroutines.
type CommitRevealAdapter struct {
	inner  Solver
	logger *logger.Logger

	mu          sync.Mutex
	settlements map[string]*settlement.Settlement
}

// NewCommitRevealAdapter wraps a one-shot solver
func NewCommitRevealAdapter(inner Solver, log *logger.Logger) *CommitRevealAdapter {
	return &CommitRevealAdapter{
		inner:       inner,
		logger:      log.Named("commit-reveal"),
		settlements: make(map[string]*settlement.Settlement),
	}
}

// Commit runs the wrapped solver and returns the summary of its settlement
func (a *CommitRevealAdapter) Commit(ctx context.Context, auction *Auction) (*SettlementSummary, error) {
	solutions, err := a.inner.Solve(ctx, auction)
	if err != nil {
		return nil, err
	}
	if len(solutions) == 0 {
		return nil, errors.New("solver found no solution")
	}

	best := solutions[0]
	summary := Summarize(best)
	key, err := summaryKey(summary)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.settlements[key] = best
	a.mu.Unlock()

	a.logger.Debug("Committed to settlement",
		zap.Uint64("run", auction.Run),
		zap.Int("orders", len(summary.Orders)))
	return summary, nil
}

// Reveal returns the settlement whose summary was produced by an earlier
// commit
func (a *CommitRevealAdapter) Reveal(_ context.Context, summary *SettlementSummary) (*settlement.Settlement, error) {
	key, err := summaryKey(summary)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.settlements[key]
	if !ok {
		return nil, fmt.Errorf("no settlement matching the summary")
	}
	return st, nil
}

// Name returns the wrapped solver's name
func (a *CommitRevealAdapter) Name() string {
	return a.inner.Name()
}

// Account returns the wrapped solver's account
func (a *CommitRevealAdapter) Account() common.Address {
	return a.inner.Account()
}

// Summarize trivially digests a settlement into a summary. Solvers that can
// score their settlements fill the objective and gas fields themselves.
func Summarize(st *settlement.Settlement) *SettlementSummary {
	prices := make(map[common.Address]*domain.U256, len(st.ClearingPrices))
	for token, price := range st.ClearingPrices {
		prices[token] = price
	}
	orders := make([]domain.OrderUID, 0, len(st.Trades))
	for _, trade := range st.Trades {
		orders = append(orders, trade.Order.Metadata.UID)
	}
	return &SettlementSummary{
		ClearingPrices: prices,
		Orders:         orders,
	}
}

// summaryKey derives a deterministic lookup key. JSON marshalling sorts map
// keys, so equal summaries map to equal keys.
func summaryKey(summary *SettlementSummary) (string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to digest settlement summary: %w", err)
	}
	return string(data), nil
}
