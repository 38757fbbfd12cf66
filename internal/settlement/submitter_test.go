package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// well-known development key, never used on a real network
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeTxBackend struct {
	mu       sync.Mutex
	nonce    uint64
	gasPrice *big.Int
	sendErr  error
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
}

func newFakeTxBackend() *fakeTxBackend {
	return &fakeTxBackend{
		nonce:    7,
		gasPrice: big.NewInt(1000),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeTxBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeTxBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return receipt, nil
}

func (f *fakeTxBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeTxBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeTxBackend) sentTransactions() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *fakeTxBackend) confirmFirst(status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := f.sent[0]
	f.receipts[tx.Hash()] = &types.Receipt{
		TxHash:      tx.Hash(),
		Status:      status,
		BlockNumber: big.NewInt(100),
		GasUsed:     90_000,
	}
}

func newTestSubmitter(t *testing.T, backend TransactionBackend, cfg config.SubmissionConfig) *Submitter {
	t.Helper()
	signer, err := NewKeyedSigner(testKey, 1)
	require.NoError(t, err)
	return NewSubmitter(backend, signer, common.HexToAddress("0xff"), cfg, logger.NewNop())
}

func submissionConfig() config.SubmissionConfig {
	return config.SubmissionConfig{
		MaxDuration:     time.Second,
		PollInterval:    5 * time.Millisecond,
		BumpInterval:    time.Second,
		GasPriceBump:    1.125,
		MaxGasPriceGwei: 800,
	}
}

func TestSubmitConfirms(t *testing.T) {
	backend := newFakeTxBackend()
	submitter := newTestSubmitter(t, backend, submissionConfig())

	done := make(chan struct{})
	go func() {
		// confirm the transaction once it was broadcast
		for len(backend.sentTransactions()) == 0 {
			time.Sleep(time.Millisecond)
		}
		backend.confirmFirst(types.ReceiptStatusSuccessful)
		close(done)
	}()

	receipt, err := submitter.Submit(context.Background(), namedSolver{name: "s"}, &Settlement{CallData: []byte{1}}, 100_000)
	<-done
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	sent := backend.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(7), sent[0].Nonce())
	// the gas limit leaves headroom over the estimate
	assert.Equal(t, uint64(120_000), sent[0].Gas())
}

func TestSubmitRevertedOnChain(t *testing.T) {
	backend := newFakeTxBackend()
	submitter := newTestSubmitter(t, backend, submissionConfig())

	go func() {
		for len(backend.sentTransactions()) == 0 {
			time.Sleep(time.Millisecond)
		}
		backend.confirmFirst(types.ReceiptStatusFailed)
	}()

	_, err := submitter.Submit(context.Background(), namedSolver{}, &Settlement{}, 1)
	assert.True(t, IsSubmissionKind(err, SubmissionReverted), "got %v", err)
}

func TestSubmitTimeout(t *testing.T) {
	backend := newFakeTxBackend()
	cfg := submissionConfig()
	cfg.MaxDuration = 30 * time.Millisecond
	submitter := newTestSubmitter(t, backend, cfg)

	_, err := submitter.Submit(context.Background(), namedSolver{}, &Settlement{}, 1)
	assert.True(t, IsSubmissionKind(err, SubmissionTimeout), "got %v", err)
}

func TestSubmitInitialSendClassified(t *testing.T) {
	backend := newFakeTxBackend()
	backend.sendErr = errors.New("replacement transaction underpriced")
	submitter := newTestSubmitter(t, backend, submissionConfig())

	_, err := submitter.Submit(context.Background(), namedSolver{}, &Settlement{}, 1)
	assert.True(t, IsSubmissionKind(err, SubmissionUnderpriced), "got %v", err)
}

func TestSubmitBumpsGasPriceOnSameNonce(t *testing.T) {
	backend := newFakeTxBackend()
	cfg := submissionConfig()
	cfg.BumpInterval = 10 * time.Millisecond
	cfg.MaxDuration = 60 * time.Millisecond
	submitter := newTestSubmitter(t, backend, cfg)

	_, err := submitter.Submit(context.Background(), namedSolver{}, &Settlement{}, 1)
	assert.True(t, IsSubmissionKind(err, SubmissionTimeout), "got %v", err)

	sent := backend.sentTransactions()
	require.GreaterOrEqual(t, len(sent), 2)
	for i := 1; i < len(sent); i++ {
		assert.Equal(t, sent[0].Nonce(), sent[i].Nonce())
		assert.Equal(t, 1, sent[i].GasPrice().Cmp(sent[i-1].GasPrice()),
			"replacements must raise the gas price")
	}
}

func TestSubmitCancellationStopsReplacements(t *testing.T) {
	backend := newFakeTxBackend()
	ctx, cancel := context.WithCancel(context.Background())
	submitter := newTestSubmitter(t, backend, submissionConfig())

	go func() {
		for len(backend.sentTransactions()) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := submitter.Submit(ctx, namedSolver{}, &Settlement{}, 1)
	var sub *SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.ErrorIs(t, sub.Err, context.Canceled)
	// the already broadcast transaction stays in flight
	assert.Len(t, backend.sentTransactions(), 1)
}

func TestClassifySendError(t *testing.T) {
	assert.Equal(t, SubmissionErrorKind(""), classifySendError(nil))
	assert.Equal(t, SubmissionErrorKind(""), classifySendError(errors.New("already known")))
	assert.Equal(t, SubmissionUnderpriced, classifySendError(errors.New("transaction underpriced")))
	assert.Equal(t, SubmissionReverted, classifySendError(errors.New("execution reverted: GPv2: order expired")))
	assert.Equal(t, SubmissionRejected, classifySendError(errors.New("nonce too low")))
	assert.Equal(t, SubmissionRejected, classifySendError(errors.New("insufficient funds for gas * price + value")))
	assert.Equal(t, SubmissionOther, classifySendError(errors.New("connection refused")))
}
