package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AuctionID identifies one published auction. IDs are assigned monotonically
// by the auction store.
type AuctionID int64

// Auction is a batch of solvable orders published for solver competition,
// together with reference prices in the native-token numeraire.
type Auction struct {
	Orders                []Order                  `json:"orders"`
	Prices                map[common.Address]*U256 `json:"prices"`
	LatestSettlementBlock uint64                   `json:"latestSettlementBlock"`
	// Deadline is the wall-clock instant by which solving must finish.
	// Optional; the driver falls back to its configured default.
	Deadline *time.Time `json:"deadline,omitempty"`
}

// AuctionWithID is an auction together with the ID the store assigned to it
type AuctionWithID struct {
	ID      AuctionID `json:"id"`
	Auction Auction   `json:"auction"`
}

// SolveDeadline resolves the instant by which solving this auction must
// finish, falling back to now+fallback when the payload carries none.
func (a *AuctionWithID) SolveDeadline(now time.Time, fallback time.Duration) time.Time {
	if a.Auction.Deadline != nil {
		return *a.Auction.Deadline
	}
	return now.Add(fallback)
}

// ExternalPrices are reference prices used to value order tokens in a common
// numeraire. They are guaranteed to cover every token referenced by an order
// of the auction they were built from.
type ExternalPrices map[common.Address]*U256

// NewExternalPrices builds external prices from auction reference prices,
// failing when any token traded by the given orders has no price.
func NewExternalPrices(prices map[common.Address]*U256, orders []Order) (ExternalPrices, error) {
	external := make(ExternalPrices, len(prices))
	for token, price := range prices {
		external[token] = price
	}
	for i := range orders {
		for _, token := range orders[i].Tokens() {
			if _, ok := external[token]; !ok {
				return nil, fmt.Errorf("auction is missing external price for token %s", token.Hex())
			}
		}
	}
	return external, nil
}
