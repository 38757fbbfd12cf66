package conversion

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/solver"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

type fakeLiquidity struct {
	sources []solver.Liquidity
	err     error
	block   uint64
}

func (f *fakeLiquidity) Liquidity(_ context.Context, _ []domain.Order, block uint64) ([]solver.Liquidity, error) {
	f.block = block
	return f.sources, f.err
}

type fakeGas struct {
	price *big.Int
	err   error
}

func (f *fakeGas) EstimateGasPrice(context.Context) (*big.Int, error) {
	return f.price, f.err
}

func auctionFixture() domain.AuctionWithID {
	sellToken := common.HexToAddress("0x0101010101010101010101010101010101010101")
	buyToken := common.HexToAddress("0x0202020202020202020202020202020202020202")
	return domain.AuctionWithID{
		ID: 42,
		Auction: domain.Auction{
			Orders: []domain.Order{{
				Data: domain.OrderData{
					SellToken: sellToken,
					BuyToken:  buyToken,
				},
			}},
			Prices: map[common.Address]*domain.U256{
				sellToken: domain.U256FromUint64(100),
				buyToken:  domain.U256FromUint64(200),
			},
		},
	}
}

func TestConvertAuction(t *testing.T) {
	liquidity := &fakeLiquidity{sources: []solver.Liquidity{{Kind: "constant-product"}}}
	converter := NewConverter(liquidity, &fakeGas{price: big.NewInt(2e9)}, 25*time.Second, logger.NewNop())

	converted, err := converter.ConvertAuction(context.Background(), auctionFixture(), 17)
	require.NoError(t, err)

	assert.Equal(t, domain.AuctionID(42), converted.ID)
	assert.Equal(t, uint64(1), converted.Run)
	assert.Equal(t, uint64(17), converted.LiquidityFetchBlock)
	assert.Equal(t, uint64(17), liquidity.block)
	assert.Len(t, converted.Liquidity, 1)
	assert.Equal(t, 2e9, converted.GasPrice)
	assert.Len(t, converted.ExternalPrices, 2)
	assert.WithinDuration(t, time.Now().Add(25*time.Second), converted.Deadline, time.Second)

	// run counter increments per conversion
	again, err := converter.ConvertAuction(context.Background(), auctionFixture(), 18)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), again.Run)
}

func TestConvertAuctionUsesPayloadDeadline(t *testing.T) {
	converter := NewConverter(NoLiquidity{}, &fakeGas{price: big.NewInt(1)}, 25*time.Second, logger.NewNop())

	deadline := time.Now().Add(3 * time.Second)
	auction := auctionFixture()
	auction.Auction.Deadline = &deadline

	converted, err := converter.ConvertAuction(context.Background(), auction, 1)
	require.NoError(t, err)
	assert.Equal(t, deadline, converted.Deadline)
}

func TestConvertAuctionMissingPrice(t *testing.T) {
	converter := NewConverter(NoLiquidity{}, &fakeGas{price: big.NewInt(1)}, 25*time.Second, logger.NewNop())

	auction := auctionFixture()
	delete(auction.Auction.Prices, auction.Auction.Orders[0].Data.BuyToken)

	_, err := converter.ConvertAuction(context.Background(), auction, 1)
	assert.ErrorContains(t, err, "missing external price")
}

func TestConvertAuctionLiquidityFailure(t *testing.T) {
	liquidity := &fakeLiquidity{err: errors.New("subgraph down")}
	converter := NewConverter(liquidity, &fakeGas{price: big.NewInt(1)}, 25*time.Second, logger.NewNop())

	_, err := converter.ConvertAuction(context.Background(), auctionFixture(), 1)
	assert.ErrorContains(t, err, "failed to fetch liquidity")
}

func TestConvertAuctionGasFailure(t *testing.T) {
	converter := NewConverter(NoLiquidity{}, &fakeGas{err: errors.New("node down")}, 25*time.Second, logger.NewNop())

	_, err := converter.ConvertAuction(context.Background(), auctionFixture(), 1)
	assert.ErrorContains(t, err, "failed to estimate gas price")
}
