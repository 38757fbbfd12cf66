package solver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
)

// Auction is a published auction prepared for one solve attempt: liquidity
// resolved at a concrete block, external prices covering every order token
// and a hard deadline.
type Auction struct {
	ID     domain.AuctionID `json:"id"`
	Run    uint64           `json:"run"`
	Orders []domain.Order   `json:"orders"`
	// Liquidity is the on-chain liquidity snapshot read at LiquidityFetchBlock
	Liquidity           []Liquidity `json:"liquidity"`
	LiquidityFetchBlock uint64      `json:"liquidityFetchBlock"`
	// GasPrice is the current estimate in wei
	GasPrice       float64               `json:"gasPrice"`
	Deadline       time.Time             `json:"deadline"`
	ExternalPrices domain.ExternalPrices `json:"externalPrices"`
}

// Liquidity is one on-chain source the solver may trade against. The driver
// treats the state as opaque; liquidity adapters produce it.
type Liquidity struct {
	Kind    string           `json:"kind"`
	Address common.Address   `json:"address"`
	Tokens  []common.Address `json:"tokens"`
	State   json.RawMessage  `json:"state,omitempty"`
}

// SettlementSummary is the commit-phase artifact: a cheap, comparable digest
// of a candidate settlement. It round-trips through JSON for competition
// recording and carries what the solver needs to reproduce the settlement
// in the reveal phase.
type SettlementSummary struct {
	ObjectiveValue float64                         `json:"objectiveValue"`
	GasEstimate    uint64                          `json:"gasEstimate"`
	ClearingPrices map[common.Address]*domain.U256 `json:"clearingPrices"`
	Orders         []domain.OrderUID               `json:"orders"`
}

// CommitRevealSolver is the two-phase solver contract. Commit is speculative:
// it may be called again with a newer auction and the last successful summary
// supersedes earlier ones. Reveal is binding: returning a settlement commits
// the solver to that exact on-chain proposal; returning nil means the solver
// declines to execute, which is a valid outcome rather than an error.
type CommitRevealSolver interface {
	Commit(ctx context.Context, auction *Auction) (*SettlementSummary, error)
	Reveal(ctx context.Context, summary *SettlementSummary) (*settlement.Settlement, error)

	// Name returns the displayable solver name used for logging and
	// competition records.
	Name() string

	// Account returns the account settlements are simulated and submitted as.
	Account() common.Address
}
