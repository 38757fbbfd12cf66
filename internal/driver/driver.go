package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/blocks"
	"github.com/DimaJoyti/auction-driver/internal/conversion"
	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
	"github.com/DimaJoyti/auction-driver/internal/solver"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// ErrDeadlineWithoutResult is returned when the solve deadline elapsed
// before a single computation finished.
var ErrDeadlineWithoutResult = errors.New("reached the deadline without a result")

// ErrSimulationFailed wraps simulation failures of a revealed settlement so
// the API surface can report them as a distinct kind.
var ErrSimulationFailed = errors.New("simulation failed")

// ErrExecutionRejected signals that the solver declined to execute the
// settlement it previously committed to. No transaction will appear; the
// competition must treat this as a final outcome, not an infrastructure
// failure.
var ErrExecutionRejected = errors.New("solver rejected settlement execution")

// SolutionSubmitter broadcasts a settlement and waits for confirmation
type SolutionSubmitter interface {
	Submit(ctx context.Context, solver settlement.RatedSolver, st *settlement.Settlement, gasEstimate uint64) (*types.Receipt, error)
}

// Driver orchestrates one solver's participation in an auction: it keeps
// recomputing a candidate settlement against the freshest block until the
// deadline, and, if told it won, reveals, simulates, submits and confirms.
type Driver struct {
	solver        solver.CommitRevealSolver
	converter     conversion.AuctionConverter
	blockStream   *blocks.Stream
	rater         settlement.Rating
	submitter     SolutionSubmitter
	gasEstimator  conversion.GasPriceEstimator
	solveDeadline time.Duration
	logger        *logger.Logger
}

// NewDriver creates a driver for one solver
func NewDriver(
	slv solver.CommitRevealSolver,
	converter conversion.AuctionConverter,
	blockStream *blocks.Stream,
	rater settlement.Rating,
	submitter SolutionSubmitter,
	gasEstimator conversion.GasPriceEstimator,
	solveDeadline time.Duration,
	log *logger.Logger,
) *Driver {
	if solveDeadline <= 0 {
		solveDeadline = 25 * time.Second
	}
	return &Driver{
		solver:        slv,
		converter:     converter,
		blockStream:   blockStream,
		rater:         rater,
		submitter:     submitter,
		gasEstimator:  gasEstimator,
		solveDeadline: solveDeadline,
		logger:        log.Named("driver"),
	}
}

// OnAuctionStarted ingests a freshly published auction and returns the most
// recent solve result obtained before the deadline.
func (d *Driver) OnAuctionStarted(ctx context.Context, auction domain.AuctionWithID) (*solver.SettlementSummary, error) {
	deadline := auction.SolveDeadline(time.Now(), d.solveDeadline)
	d.logger.Info("Auction started",
		zap.Int64("auction_id", int64(auction.ID)),
		zap.Int("orders", len(auction.Auction.Orders)),
		zap.Time("deadline", deadline))
	return solveUntilDeadline(ctx, auction, d.solver, d.converter, d.blockStream, deadline, d.logger)
}

// computeSolutionForBlock computes a solution with the liquidity collected
// from the given block.
func computeSolutionForBlock(
	ctx context.Context,
	auction domain.AuctionWithID,
	header *types.Header,
	converter conversion.AuctionConverter,
	slv solver.CommitRevealSolver,
) (*solver.SettlementSummary, error) {
	block, err := blocks.Number(header)
	if err != nil {
		return nil, err
	}
	converted, err := converter.ConvertAuction(ctx, auction, block)
	if err != nil {
		return nil, err
	}
	return slv.Commit(ctx, converted)
}

// solveUntilDeadline keeps solving the auction with the latest known
// liquidity until the deadline is reached or the block stream terminates.
// The subscription starts with the current block and skips intermediate
// blocks observed while a computation was in flight. Per-iteration errors
// become the current result and never stop the loop; the most recent result
// is returned.
func solveUntilDeadline(
	ctx context.Context,
	auction domain.AuctionWithID,
	slv solver.CommitRevealSolver,
	converter conversion.AuctionConverter,
	stream *blocks.Stream,
	deadline time.Time,
	log *logger.Logger,
) (*solver.SettlementSummary, error) {
	computeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		summary *solver.SettlementSummary
		err     error
	}

	results := make(chan outcome)
	done := make(chan struct{})
	sub := stream.Subscribe()

	go func() {
		defer close(done)
		for {
			header, err := sub.Next(computeCtx)
			if err != nil {
				return
			}
			summary, err := computeSolutionForBlock(computeCtx, auction, header, converter, slv)
			select {
			case results <- outcome{summary: summary, err: err}:
			case <-computeCtx.Done():
				return
			}
		}
	}()

	timeout := time.NewTimer(time.Until(deadline))
	defer timeout.Stop()

	current := outcome{err: ErrDeadlineWithoutResult}
	for {
		select {
		case result := <-results:
			log.Debug("Computed new result",
				zap.Int64("auction_id", int64(auction.ID)),
				zap.Error(result.err))
			current = result
		case <-done:
			return current.summary, current.err
		case <-timeout.C:
			return current.summary, current.err
		}
	}
}

// OnAuctionWon finalises the settlement behind the winning summary and
// submits it on chain. Returns the confirmed transaction hash.
func (d *Driver) OnAuctionWon(ctx context.Context, summary *solver.SettlementSummary) (common.Hash, error) {
	d.logger.Info("Solver won the auction")

	st, err := d.solver.Reveal(ctx, summary)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to reveal settlement: %w", err)
	}
	if st == nil {
		d.logger.Info("Solver decided against executing the settlement")
		return common.Hash{}, ErrExecutionRejected
	}

	details, err := d.validateSettlement(ctx, st)
	if err != nil {
		return common.Hash{}, err
	}

	receipt, err := d.submitter.Submit(ctx, d.solver, st, details.GasEstimate)
	if err != nil {
		return common.Hash{}, err
	}
	d.logger.Info("Settlement confirmed",
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed))
	return receipt.TxHash, nil
}

// validateSettlement checks that the settlement simulates successfully at
// the current gas price before any transaction is broadcast.
func (d *Driver) validateSettlement(ctx context.Context, st *settlement.Settlement) (*settlement.SimulationDetails, error) {
	gasPrice, err := d.gasEstimator.EstimateGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas price: %w", err)
	}

	details, err := d.rater.Simulate(ctx, []settlement.Candidate{{Solver: d.solver, Settlement: st}}, gasPrice)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, errors.New("simulation returned no results")
	}
	if details[0].Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulationFailed, details[0].Err)
	}
	d.logger.Info("Settlement simulated successfully",
		zap.Uint64("gas_estimate", details[0].GasEstimate),
		zap.Uint64("block", details[0].Block))
	return &details[0], nil
}
