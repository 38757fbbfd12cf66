package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/domain"
	"github.com/DimaJoyti/auction-driver/internal/driver"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
	"github.com/DimaJoyti/auction-driver/internal/solver"
	"github.com/DimaJoyti/auction-driver/internal/storage"
	"github.com/DimaJoyti/auction-driver/pkg/redis"
)

// solve runs the commit loop for a freshly published auction and returns the
// most recent settlement summary computed before the deadline.
func (s *Server) solve(c *gin.Context) {
	var auction domain.AuctionWithID
	if err := c.ShouldBindJSON(&auction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalidAuction", "description": err.Error()})
		return
	}

	summary, err := s.driver.OnAuctionStarted(c.Request.Context(), auction)
	if err != nil {
		kind := "solveFailed"
		if errors.Is(err, driver.ErrDeadlineWithoutResult) {
			kind = "deadlineReached"
		}
		s.logger.Warn("Solve failed",
			zap.Int64("auction_id", int64(auction.ID)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": kind, "description": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// execute reveals, simulates and submits the settlement behind a winning
// summary and returns the confirmed transaction hash.
func (s *Server) execute(c *gin.Context) {
	var summary solver.SettlementSummary
	if err := c.ShouldBindJSON(&summary); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalidSummary", "description": err.Error()})
		return
	}

	txHash, err := s.driver.OnAuctionWon(c.Request.Context(), &summary)
	if err != nil {
		s.respondExecuteError(c, err)
		return
	}

	event := gin.H{
		"type":            "settlement.confirmed",
		"solver":          s.solverName,
		"transactionHash": txHash.Hex(),
	}
	if err := s.producer.ProduceJSON(c.Request.Context(), txHash.Hex(), event); err != nil {
		s.logger.Warn("Failed to publish settlement event", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"transactionHash": txHash.Hex()})
}

func (s *Server) respondExecuteError(c *gin.Context, err error) {
	var sub *settlement.SubmissionError
	switch {
	case errors.Is(err, driver.ErrExecutionRejected):
		c.JSON(http.StatusBadRequest, gin.H{"kind": "executionRejected"})
	case errors.Is(err, driver.ErrSimulationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"kind": "simulationFailed", "description": err.Error()})
	case errors.As(err, &sub):
		c.JSON(http.StatusInternalServerError, gin.H{
			"kind":        "submissionFailed",
			"submission":  string(sub.Kind),
			"description": sub.Error(),
		})
	default:
		s.logger.Error("Execute failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "executeFailed", "description": err.Error()})
	}
}

// competitionByID serves a competition record by auction ID
func (s *Server) competitionByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalidAuctionId"})
		return
	}
	s.serveCompetition(c, storage.ByID(domain.AuctionID(id)), fmt.Sprintf("solver_competition:id:%d", id))
}

// competitionByTxHash serves a competition record by settlement transaction
// hash
func (s *Server) competitionByTxHash(c *gin.Context) {
	raw, err := hexutil.Decode(c.Param("hash"))
	if err != nil || len(raw) != common.HashLength {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalidTransactionHash"})
		return
	}
	hash := common.BytesToHash(raw)
	s.serveCompetition(c, storage.ByTransaction(hash), "solver_competition:tx:"+hash.Hex())
}

func (s *Server) serveCompetition(c *gin.Context, id storage.Identifier, cacheKey string) {
	ctx := c.Request.Context()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		} else if !redis.IsNil(err) {
			s.logger.Warn("Competition cache read failed", zap.Error(err))
		}
	}

	record, err := s.store.LoadCompetition(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"kind": "notFound"})
		return
	}
	if err != nil {
		s.logger.Error("Failed to load solver competition", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internalError"})
		return
	}

	if s.cache != nil {
		data, err := json.Marshal(record)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL); err != nil {
				s.logger.Warn("Competition cache write failed", zap.Error(err))
			}
		}
	}
	c.JSON(http.StatusOK, record)
}

// saveCompetition persists the per-auction competition record posted by the
// autopilot once the auction concluded.
func (s *Server) saveCompetition(c *gin.Context) {
	var record domain.SolverCompetition
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "invalidCompetition", "description": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.store.SaveCompetition(ctx, &record); err != nil {
		s.logger.Error("Failed to save solver competition", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internalError"})
		return
	}

	if s.cache != nil {
		keys := []string{fmt.Sprintf("solver_competition:id:%d", record.AuctionID)}
		if record.TransactionHash != nil {
			keys = append(keys, "solver_competition:tx:"+record.TransactionHash.Hex())
		}
		if err := s.cache.Del(ctx, keys...); err != nil {
			s.logger.Warn("Competition cache invalidation failed", zap.Error(err))
		}
	}

	event := gin.H{
		"type":      "competition.saved",
		"auctionId": record.AuctionID,
		"solutions": len(record.Solutions),
	}
	if err := s.producer.ProduceJSON(ctx, strconv.FormatInt(int64(record.AuctionID), 10), event); err != nil {
		s.logger.Warn("Failed to publish competition event", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{"auctionId": record.AuctionID})
}
