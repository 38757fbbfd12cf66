package conversion

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/solver"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// AuctionConverter turns a published auction and a block number into a
// solver-ready auction: liquidity resolved at that block, external prices
// covering every order token and a hard deadline.
type AuctionConverter interface {
	ConvertAuction(ctx context.Context, auction domain.AuctionWithID, block uint64) (*solver.Auction, error)
}

// LiquidityFetcher resolves the on-chain liquidity snapshot for a set of
// orders at a given block. Concrete source adapters live outside this core.
type LiquidityFetcher interface {
	Liquidity(ctx context.Context, orders []domain.Order, block uint64) ([]solver.Liquidity, error)
}

// GasPriceEstimator estimates the current gas price in wei
type GasPriceEstimator interface {
	EstimateGasPrice(ctx context.Context) (*big.Int, error)
}

// Converter is the production AuctionConverter. It is a pure function of its
// inputs modulo the liquidity and gas price reads.
type Converter struct {
	liquidity       LiquidityFetcher
	gas             GasPriceEstimator
	defaultDeadline time.Duration
	run             atomic.Uint64
	logger          *logger.Logger
}

// NewConverter creates an auction converter
func NewConverter(liquidity LiquidityFetcher, gas GasPriceEstimator, defaultDeadline time.Duration, log *logger.Logger) *Converter {
	return &Converter{
		liquidity:       liquidity,
		gas:             gas,
		defaultDeadline: defaultDeadline,
		logger:          log.Named("auction-converter"),
	}
}

// ConvertAuction prepares one solve attempt against the given block
func (c *Converter) ConvertAuction(ctx context.Context, auction domain.AuctionWithID, block uint64) (*solver.Auction, error) {
	liquidity, err := c.liquidity.Liquidity(ctx, auction.Auction.Orders, block)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch liquidity: %w", err)
	}

	gasPrice, err := c.gas.EstimateGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas price: %w", err)
	}

	prices, err := domain.NewExternalPrices(auction.Auction.Prices, auction.Auction.Orders)
	if err != nil {
		return nil, err
	}

	gasPriceWei, _ := new(big.Float).SetInt(gasPrice).Float64()
	run := c.run.Add(1)
	c.logger.Debug("Converted auction",
		zap.Int64("auction_id", int64(auction.ID)),
		zap.Uint64("run", run),
		zap.Uint64("block", block),
		zap.Int("liquidity_sources", len(liquidity)))

	return &solver.Auction{
		ID:                  auction.ID,
		Run:                 run,
		Orders:              auction.Auction.Orders,
		Liquidity:           liquidity,
		LiquidityFetchBlock: block,
		GasPrice:            gasPriceWei,
		Deadline:            auction.SolveDeadline(time.Now(), c.defaultDeadline),
		ExternalPrices:      prices,
	}, nil
}

// NoLiquidity is a LiquidityFetcher for deployments where all liquidity is
// private to the solver engine.
type NoLiquidity struct{}

// Liquidity returns an empty snapshot
func (NoLiquidity) Liquidity(context.Context, []domain.Order, uint64) ([]solver.Liquidity, error) {
	return nil, nil
}

// NodeGasEstimator estimates gas prices straight from a node
type NodeGasEstimator struct {
	client interface {
		SuggestGasPrice(ctx context.Context) (*big.Int, error)
	}
}

// NewNodeGasEstimator wraps a node client
func NewNodeGasEstimator(client interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}) *NodeGasEstimator {
	return &NodeGasEstimator{client: client}
}

// EstimateGasPrice returns the node's suggested gas price
func (e *NodeGasEstimator) EstimateGasPrice(ctx context.Context) (*big.Int, error) {
	return e.client.SuggestGasPrice(ctx)
}
