package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// RatedSolver is the capability set the rater needs from a solver
type RatedSolver interface {
	Name() string
	Account() common.Address
}

// Candidate pairs a settlement with the solver that produced it
type Candidate struct {
	Solver     RatedSolver
	Settlement *Settlement
}

// SimulationDetails is the per-candidate outcome of a simulation run. A
// failed simulation is carried in Err, not raised, so candidates can be
// ranked side by side.
type SimulationDetails struct {
	Solver      RatedSolver
	Settlement  *Settlement
	Block       uint64
	GasEstimate uint64
	Err         error
}

// Rating simulates candidate settlements against the current chain state
type Rating interface {
	Simulate(ctx context.Context, candidates []Candidate, gasPrice *big.Int) ([]SimulationDetails, error)
}

// SimulationBackend is the node surface the rater simulates against
type SimulationBackend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ContractRater simulates settlements as calls against the settlement
// contract.
type ContractRater struct {
	backend  SimulationBackend
	contract common.Address
	logger   *logger.Logger
}

// NewContractRater creates a rater bound to the settlement contract
func NewContractRater(backend SimulationBackend, contract common.Address, log *logger.Logger) *ContractRater {
	return &ContractRater{
		backend:  backend,
		contract: contract,
		logger:   log.Named("settlement-rater"),
	}
}

// Simulate estimates gas for every candidate at the current block. Individual
// simulation failures are typed outcomes; only failing to read the chain
// state at all is an error.
func (r *ContractRater) Simulate(ctx context.Context, candidates []Candidate, gasPrice *big.Int) ([]SimulationDetails, error) {
	block, err := r.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation block: %w", err)
	}

	details := make([]SimulationDetails, 0, len(candidates))
	for _, candidate := range candidates {
		msg := ethereum.CallMsg{
			From:     candidate.Solver.Account(),
			To:       &r.contract,
			GasPrice: gasPrice,
			Data:     candidate.Settlement.CallData,
		}
		gas, err := r.backend.EstimateGas(ctx, msg)
		if err != nil {
			r.logger.Debug("Settlement simulation failed",
				zap.String("solver", candidate.Solver.Name()),
				zap.Uint64("block", block),
				zap.Error(err))
		}
		details = append(details, SimulationDetails{
			Solver:      candidate.Solver,
			Settlement:  candidate.Settlement,
			Block:       block,
			GasEstimate: gas,
			Err:         err,
		})
	}
	return details, nil
}
