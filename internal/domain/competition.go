package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SolverCompetition is the immutable per-auction record of everything the
// competition saw: the submitted auction, every proposed solution and the
// final settlement transaction, if any.
type SolverCompetition struct {
	AuctionID                  AuctionID          `json:"auctionId"`
	GasPrice                   float64            `json:"gasPrice"`
	AuctionStartBlock          uint64             `json:"auctionStartBlock"`
	LiquidityCollectedBlock    uint64             `json:"liquidityCollectedBlock"`
	CompetitionSimulationBlock uint64             `json:"competitionSimulationBlock"`
	TransactionHash            *common.Hash       `json:"transactionHash"`
	Auction                    CompetitionAuction `json:"auction"`
	Solutions                  []SolverSettlement `json:"solutions"`
}

// CompetitionAuction is the submitted auction as seen by all solvers
type CompetitionAuction struct {
	Orders []OrderUID               `json:"orders"`
	Prices map[common.Address]*U256 `json:"prices"`
}

// SolverSettlement is one solver's proposed solution
type SolverSettlement struct {
	Solver         string                   `json:"solver"`
	Objective      Objective                `json:"objective"`
	ClearingPrices map[common.Address]*U256 `json:"clearingPrices"`
	Orders         []ExecutedOrder          `json:"orders"`
	CallData       hexutil.Bytes            `json:"callData"`
}

// Objective is the scalar score of a settlement, gas-denominated
type Objective struct {
	Total   float64 `json:"total"`
	Surplus float64 `json:"surplus"`
	Fees    float64 `json:"fees"`
	Cost    float64 `json:"cost"`
	Gas     uint64  `json:"gas"`
}

// ExecutedOrder is the executed subset entry of a solution
type ExecutedOrder struct {
	ID             OrderUID `json:"id"`
	ExecutedAmount *U256    `json:"executedAmount"`
}
