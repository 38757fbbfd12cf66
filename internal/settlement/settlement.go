package settlement

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/DimaJoyti/auction-driver/internal/domain"
)

// Settlement is a concrete on-chain transaction proposal matching a subset
// of orders at chosen clearing prices. The driver treats it as opaque: it is
// produced by a solver and consumed by simulation and submission.
type Settlement struct {
	ClearingPrices map[common.Address]*domain.U256
	Trades         []Trade
	CallData       []byte
}

// Trade is one order execution inside a settlement
type Trade struct {
	Order          domain.Order
	ExecutedAmount *domain.U256
}

// ExecutedOrders returns the executed-order subset in competition-record form
func (s *Settlement) ExecutedOrders() []domain.ExecutedOrder {
	orders := make([]domain.ExecutedOrder, 0, len(s.Trades))
	for _, trade := range s.Trades {
		orders = append(orders, domain.ExecutedOrder{
			ID:             trade.Order.Metadata.UID,
			ExecutedAmount: trade.ExecutedAmount,
		})
	}
	return orders
}
