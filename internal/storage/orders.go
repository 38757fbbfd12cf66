package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/DimaJoyti/auction-driver/internal/domain"
)

// FullOrder is a persisted order row joined with its trade aggregates
type FullOrder struct {
	UID               []byte          `db:"uid"`
	Owner             []byte          `db:"owner"`
	CreationTimestamp time.Time       `db:"creation_timestamp"`
	SellToken         []byte          `db:"sell_token"`
	BuyToken          []byte          `db:"buy_token"`
	Receiver          []byte          `db:"receiver"`
	SellAmount        decimal.Decimal `db:"sell_amount"`
	BuyAmount         decimal.Decimal `db:"buy_amount"`
	ValidTo           int64           `db:"valid_to"`
	AppData           []byte          `db:"app_data"`
	FeeAmount         decimal.Decimal `db:"fee_amount"`
	FullFeeAmount     decimal.Decimal `db:"full_fee_amount"`
	Kind              string          `db:"kind"`
	PartiallyFillable bool            `db:"partially_fillable"`
	Signature         []byte          `db:"signature"`
	SigningScheme     string          `db:"signing_scheme"`
	SellTokenBalance  string          `db:"sell_token_balance"`
	BuyTokenBalance   string          `db:"buy_token_balance"`
	IsLiquidityOrder  bool            `db:"is_liquidity_order"`
	SumSell           decimal.Decimal `db:"sum_sell"`
	SumBuy            decimal.Decimal `db:"sum_buy"`
	SumFee            decimal.Decimal `db:"sum_fee"`
}

// SolvableOrders is the materialised order set of one auction build
type SolvableOrders struct {
	Orders                []domain.Order
	LatestSettlementBlock uint64
}

const solvableOrdersQuery = `
SELECT o.uid, o.owner, o.creation_timestamp, o.sell_token, o.buy_token, o.receiver,
       o.sell_amount, o.buy_amount, o.valid_to, o.app_data, o.fee_amount, o.full_fee_amount,
       o.kind, o.partially_fillable, o.signature, o.signing_scheme,
       o.sell_token_balance, o.buy_token_balance, o.is_liquidity_order,
       COALESCE(SUM(t.sell_amount), 0) AS sum_sell,
       COALESCE(SUM(t.buy_amount), 0)  AS sum_buy,
       COALESCE(SUM(t.fee_amount), 0)  AS sum_fee
FROM orders o
LEFT JOIN trades t ON o.uid = t.order_uid
WHERE o.valid_to >= $1 AND NOT o.cancelled
GROUP BY o.uid`

// SolvableOrders loads all orders still valid at minValidTo together with
// the latest settlement block watermark.
func (p *Postgres) SolvableOrders(ctx context.Context, minValidTo uint32) (*SolvableOrders, error) {
	defer observe("solvable_orders")()

	var rows []FullOrder
	if err := p.db.SelectContext(ctx, &rows, solvableOrdersQuery, int64(minValidTo)); err != nil {
		return nil, fmt.Errorf("failed to load solvable orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for i := range rows {
		order, err := rows[i].IntoOrder()
		if err != nil {
			return nil, fmt.Errorf("order %x: %w", rows[i].UID, err)
		}
		orders = append(orders, *order)
	}

	var block int64
	err := p.db.GetContext(ctx, &block,
		`SELECT COALESCE(MAX(block_number), 0) FROM settlements`)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest settlement block: %w", err)
	}

	return &SolvableOrders{
		Orders:                orders,
		LatestSettlementBlock: uint64(block),
	}, nil
}

// IntoOrder materialises a persisted row into a solvable order. Every
// arbitrary-precision amount must fit into U256 and valid_to into 32 bits;
// unknown enum variants fail loud.
func (o *FullOrder) IntoOrder() (*domain.Order, error) {
	kind, err := orderKindFrom(o.Kind)
	if err != nil {
		return nil, err
	}

	var executedSum decimal.Decimal
	switch kind {
	case domain.OrderKindBuy:
		executedSum = o.SumBuy
	case domain.OrderKindSell:
		executedSum = o.SumSell.Sub(o.SumFee)
	}
	executedAmount, ok := domain.U256FromDecimal(executedSum)
	if !ok {
		return nil, fmt.Errorf("executed_amount does not fit into U256")
	}
	fullFeeAmount, ok := domain.U256FromDecimal(o.FullFeeAmount)
	if !ok {
		return nil, fmt.Errorf("full_fee_amount is not U256")
	}
	sellAmount, ok := domain.U256FromDecimal(o.SellAmount)
	if !ok {
		return nil, fmt.Errorf("sell_amount is not U256")
	}
	buyAmount, ok := domain.U256FromDecimal(o.BuyAmount)
	if !ok {
		return nil, fmt.Errorf("buy_amount is not U256")
	}
	feeAmount, ok := domain.U256FromDecimal(o.FeeAmount)
	if !ok {
		return nil, fmt.Errorf("fee_amount is not U256")
	}
	if o.ValidTo < 0 || o.ValidTo > int64(^uint32(0)) {
		return nil, fmt.Errorf("valid_to is not u32")
	}

	var uid domain.OrderUID
	if len(o.UID) != len(uid) {
		return nil, fmt.Errorf("order uid is not %d bytes", len(uid))
	}
	copy(uid[:], o.UID)

	var appData domain.AppData
	if len(o.AppData) != len(appData) {
		return nil, fmt.Errorf("app_data is not %d bytes", len(appData))
	}
	copy(appData[:], o.AppData)

	var receiver *common.Address
	if len(o.Receiver) > 0 {
		addr := common.BytesToAddress(o.Receiver)
		receiver = &addr
	}

	sellSource, err := sellTokenSourceFrom(o.SellTokenBalance)
	if err != nil {
		return nil, err
	}
	buyDestination, err := buyTokenDestinationFrom(o.BuyTokenBalance)
	if err != nil {
		return nil, err
	}
	scheme, err := signingSchemeFrom(o.SigningScheme)
	if err != nil {
		return nil, err
	}

	return &domain.Order{
		Metadata: domain.OrderMetadata{
			CreationDate:     o.CreationTimestamp,
			Owner:            common.BytesToAddress(o.Owner),
			UID:              uid,
			ExecutedAmount:   executedAmount,
			FullFeeAmount:    fullFeeAmount,
			IsLiquidityOrder: o.IsLiquidityOrder,
		},
		Data: domain.OrderData{
			SellToken:         common.BytesToAddress(o.SellToken),
			BuyToken:          common.BytesToAddress(o.BuyToken),
			Receiver:          receiver,
			SellAmount:        sellAmount,
			BuyAmount:         buyAmount,
			ValidTo:           uint32(o.ValidTo),
			AppData:           appData,
			FeeAmount:         feeAmount,
			Kind:              kind,
			PartiallyFillable: o.PartiallyFillable,
			SellTokenBalance:  sellSource,
			BuyTokenBalance:   buyDestination,
		},
		Signature: domain.Signature{
			Scheme: scheme,
			Data:   o.Signature,
		},
	}, nil
}

func orderKindFrom(kind string) (domain.OrderKind, error) {
	switch kind {
	case "buy":
		return domain.OrderKindBuy, nil
	case "sell":
		return domain.OrderKindSell, nil
	}
	return "", fmt.Errorf("unknown order kind %q", kind)
}

func sellTokenSourceFrom(source string) (domain.SellTokenSource, error) {
	switch source {
	case "erc20":
		return domain.SellTokenSourceErc20, nil
	case "internal":
		return domain.SellTokenSourceInternal, nil
	case "external":
		return domain.SellTokenSourceExternal, nil
	}
	return "", fmt.Errorf("unknown sell token source %q", source)
}

func buyTokenDestinationFrom(destination string) (domain.BuyTokenDestination, error) {
	switch destination {
	case "erc20":
		return domain.BuyTokenDestinationErc20, nil
	case "internal":
		return domain.BuyTokenDestinationInternal, nil
	}
	return "", fmt.Errorf("unknown buy token destination %q", destination)
}

func signingSchemeFrom(scheme string) (domain.SigningScheme, error) {
	switch scheme {
	case "eip712":
		return domain.SigningSchemeEip712, nil
	case "ethsign":
		return domain.SigningSchemeEthSign, nil
	case "eip1271":
		return domain.SigningSchemeEip1271, nil
	case "presign":
		return domain.SigningSchemePreSign, nil
	}
	return "", fmt.Errorf("unknown signing scheme %q", scheme)
}
