package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// HTTPSolver speaks the commit/reveal protocol with a remote solver engine.
// Commit posts the prepared auction to {endpoint}/commit; reveal posts the
// winning summary to {endpoint}/reveal. A null settlement in the reveal
// response means the engine declines to execute.
type HTTPSolver struct {
	name     string
	account  common.Address
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

// NewHTTPSolver creates a solver client from configuration
func NewHTTPSolver(cfg config.SolverConfig, log *logger.Logger) (*HTTPSolver, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("solver endpoint is required")
	}
	if !common.IsHexAddress(cfg.Account) {
		return nil, fmt.Errorf("invalid solver account %q", cfg.Account)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &HTTPSolver{
		name:     cfg.Name,
		account:  common.HexToAddress(cfg.Account),
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   log.Named("http-solver").With(zap.String("solver", cfg.Name)),
	}, nil
}

// Commit asks the engine for a candidate settlement summary
func (s *HTTPSolver) Commit(ctx context.Context, auction *Auction) (*SettlementSummary, error) {
	var summary SettlementSummary
	if err := s.post(ctx, "/commit", auction, &summary); err != nil {
		return nil, fmt.Errorf("solver commit failed: %w", err)
	}
	return &summary, nil
}

// Reveal asks the engine for the settlement behind a winning summary
func (s *HTTPSolver) Reveal(ctx context.Context, summary *SettlementSummary) (*settlement.Settlement, error) {
	var response revealResponse
	if err := s.post(ctx, "/reveal", summary, &response); err != nil {
		return nil, fmt.Errorf("solver reveal failed: %w", err)
	}
	if response.Settlement == nil {
		return nil, nil
	}
	return response.Settlement.toSettlement(), nil
}

// Name returns the configured solver name
func (s *HTTPSolver) Name() string {
	return s.name
}

// Account returns the configured solver account
func (s *HTTPSolver) Account() common.Address {
	return s.account
}

func (s *HTTPSolver) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solver returned status %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type revealResponse struct {
	Settlement *settlementDTO `json:"settlement"`
}

type settlementDTO struct {
	ClearingPrices map[common.Address]*domain.U256 `json:"clearingPrices"`
	Trades         []tradeDTO                      `json:"trades"`
	CallData       hexutil.Bytes                   `json:"callData"`
}

type tradeDTO struct {
	Order          domain.Order `json:"order"`
	ExecutedAmount *domain.U256 `json:"executedAmount"`
}

func (d *settlementDTO) toSettlement() *settlement.Settlement {
	trades := make([]settlement.Trade, 0, len(d.Trades))
	for _, trade := range d.Trades {
		trades = append(trades, settlement.Trade{
			Order:          trade.Order,
			ExecutedAmount: trade.ExecutedAmount,
		})
	}
	return &settlement.Settlement{
		ClearingPrices: d.ClearingPrices,
		Trades:         trades,
		CallData:       d.CallData,
	}
}
