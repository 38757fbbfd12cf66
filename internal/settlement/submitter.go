package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// SubmissionErrorKind classifies submission failures
type SubmissionErrorKind string

const (
	SubmissionReverted    SubmissionErrorKind = "reverted"
	SubmissionTimeout     SubmissionErrorKind = "timeout"
	SubmissionUnderpriced SubmissionErrorKind = "underpriced"
	SubmissionRejected    SubmissionErrorKind = "rejected"
	SubmissionOther       SubmissionErrorKind = "other"
)

// SubmissionError is a classified submission failure
type SubmissionError struct {
	Kind SubmissionErrorKind
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed (%s): %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func submissionError(kind SubmissionErrorKind, err error) *SubmissionError {
	return &SubmissionError{Kind: kind, Err: err}
}

// TransactionBackend is the node surface the submitter broadcasts through
type TransactionBackend interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Signer signs settlement transactions
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// KeyedSigner signs with an in-memory private key
type KeyedSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewKeyedSigner creates a signer from a hex-encoded private key
func NewKeyedSigner(hexKey string, chainID uint64) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid submission private key: %w", err)
	}
	return &KeyedSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
	}, nil
}

// Address returns the account transactions are sent from
func (s *KeyedSigner) Address() common.Address {
	return s.address
}

// SignTx signs the transaction for the configured chain
func (s *KeyedSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, s.signer, s.key)
}

// Submitter broadcasts settlement transactions under a gas-bumping strategy
// and waits for confirmation. A single Submit call confirms at most one
// transaction: every replacement reuses the same nonce.
type Submitter struct {
	backend  TransactionBackend
	signer   Signer
	contract common.Address

	maxDuration  time.Duration
	pollInterval time.Duration
	bumpInterval time.Duration
	gasPriceBump float64
	maxGasPrice  *big.Int

	logger *logger.Logger
}

// NewSubmitter creates a submitter for the settlement contract
func NewSubmitter(backend TransactionBackend, signer Signer, contract common.Address, cfg config.SubmissionConfig, log *logger.Logger) *Submitter {
	maxGasPrice := new(big.Int)
	if cfg.MaxGasPriceGwei > 0 {
		gwei := new(big.Float).Mul(big.NewFloat(cfg.MaxGasPriceGwei), big.NewFloat(1e9))
		gwei.Int(maxGasPrice)
	}
	return &Submitter{
		backend:      backend,
		signer:       signer,
		contract:     contract,
		maxDuration:  cfg.MaxDuration,
		pollInterval: cfg.PollInterval,
		bumpInterval: cfg.BumpInterval,
		gasPriceBump: cfg.GasPriceBump,
		maxGasPrice:  maxGasPrice,
		logger:       log.Named("solution-submitter"),
	}
}

// Submit broadcasts the settlement and blocks until one transaction confirms,
// the submission deadline passes, or the context is cancelled. Cancellation
// stops further replacements; transactions already broadcast stay in flight.
func (s *Submitter) Submit(ctx context.Context, solver RatedSolver, st *Settlement, gasEstimate uint64) (*types.Receipt, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, s.signer.Address())
	if err != nil {
		return nil, submissionError(SubmissionOther, fmt.Errorf("failed to fetch nonce: %w", err))
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, submissionError(SubmissionOther, fmt.Errorf("failed to fetch gas price: %w", err))
	}

	// Estimation happens against the previous block; leave headroom so state
	// drift between simulation and inclusion does not run the tx out of gas.
	gasLimit := gasEstimate + gasEstimate/5

	var sent []common.Hash
	send := func(price *big.Int) error {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &s.contract,
			Gas:      gasLimit,
			GasPrice: price,
			Data:     st.CallData,
		})
		signed, err := s.signer.SignTx(tx)
		if err != nil {
			return fmt.Errorf("failed to sign settlement transaction: %w", err)
		}
		if err := s.backend.SendTransaction(ctx, signed); err != nil && classifySendError(err) != "" {
			return err
		}
		sent = append(sent, signed.Hash())
		s.logger.Info("Broadcast settlement transaction",
			zap.String("solver", solver.Name()),
			zap.String("tx_hash", signed.Hash().Hex()),
			zap.Uint64("nonce", nonce),
			zap.String("gas_price", price.String()))
		return nil
	}

	if err := send(gasPrice); err != nil {
		return nil, submissionError(classifySendError(err), err)
	}

	deadline := time.NewTimer(s.maxDuration)
	defer deadline.Stop()
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	bump := time.NewTicker(s.bumpInterval)
	defer bump.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, submissionError(SubmissionOther, ctx.Err())

		case <-deadline.C:
			return nil, submissionError(SubmissionTimeout,
				fmt.Errorf("no transaction confirmed within %s", s.maxDuration))

		case <-poll.C:
			for _, hash := range sent {
				receipt, err := s.backend.TransactionReceipt(ctx, hash)
				if err != nil || receipt == nil {
					continue
				}
				if receipt.Status == types.ReceiptStatusFailed {
					return nil, submissionError(SubmissionReverted,
						fmt.Errorf("settlement transaction %s reverted", hash.Hex()))
				}
				s.logger.Info("Settlement transaction confirmed",
					zap.String("tx_hash", hash.Hex()),
					zap.Uint64("block", receipt.BlockNumber.Uint64()),
					zap.Uint64("gas_used", receipt.GasUsed))
				return receipt, nil
			}

		case <-bump.C:
			bumped := bumpGasPrice(gasPrice, s.gasPriceBump)
			if s.maxGasPrice.Sign() > 0 && bumped.Cmp(s.maxGasPrice) > 0 {
				s.logger.Warn("Gas price cap reached, not bumping further",
					zap.String("gas_price", gasPrice.String()),
					zap.String("cap", s.maxGasPrice.String()))
				continue
			}
			gasPrice = bumped
			if err := send(gasPrice); err != nil {
				switch classifySendError(err) {
				case SubmissionUnderpriced, "":
					// keep the already broadcast transactions racing
					s.logger.Debug("Replacement rejected", zap.Error(err))
				case SubmissionReverted:
					return nil, submissionError(SubmissionReverted, err)
				case SubmissionRejected:
					// nonce already consumed, a previous replacement likely
					// confirmed; the next poll picks the receipt up
					s.logger.Debug("Replacement rejected by mempool", zap.Error(err))
				default:
					s.logger.Warn("Failed to broadcast replacement", zap.Error(err))
				}
			}
		}
	}
}

// classifySendError maps node errors to the submission taxonomy. An empty
// kind means the error is not terminal for the strategy.
func classifySendError(err error) SubmissionErrorKind {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already known"), strings.Contains(msg, "known transaction"):
		return ""
	case strings.Contains(msg, "underpriced"):
		return SubmissionUnderpriced
	case strings.Contains(msg, "execution reverted"):
		return SubmissionReverted
	case strings.Contains(msg, "nonce too low"), strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "txpool is full"):
		return SubmissionRejected
	}
	return SubmissionOther
}

func bumpGasPrice(price *big.Int, factor float64) *big.Int {
	if factor <= 1 {
		factor = 1.125
	}
	bumped, _ := new(big.Float).Mul(new(big.Float).SetInt(price), big.NewFloat(factor)).Int(nil)
	// a bump below the node's replacement threshold would be rejected anyway
	if bumped.Cmp(price) <= 0 {
		bumped = new(big.Int).Add(price, big.NewInt(1))
	}
	return bumped
}

// IsSubmissionKind reports whether err is a submission failure of the given kind
func IsSubmissionKind(err error, kind SubmissionErrorKind) bool {
	var sub *SubmissionError
	return errors.As(err, &sub) && sub.Kind == kind
}
