package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/internal/api"
	"github.com/DimaJoyti/auction-driver/internal/blocks"
	"github.com/DimaJoyti/auction-driver/internal/contracts"
	"github.com/DimaJoyti/auction-driver/internal/conversion"
	"github.com/DimaJoyti/auction-driver/internal/driver"
	"github.com/DimaJoyti/auction-driver/internal/settlement"
	"github.com/DimaJoyti/auction-driver/internal/solver"
	"github.com/DimaJoyti/auction-driver/internal/storage"
	"github.com/DimaJoyti/auction-driver/pkg/config"
	"github.com/DimaJoyti/auction-driver/pkg/kafka"
	"github.com/DimaJoyti/auction-driver/pkg/logger"
	"github.com/DimaJoyti/auction-driver/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Logging)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Driver failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrationsPath != "" {
		if err := runMigrations(cfg.Database); err != nil {
			return err
		}
	}

	store, err := storage.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := ethclient.DialContext(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Uint64() != cfg.Ethereum.ChainID {
		return fmt.Errorf("node chain id %s does not match configured chain id %d",
			chainID, cfg.Ethereum.ChainID)
	}

	if !common.IsHexAddress(cfg.Ethereum.SettlementContract) {
		return fmt.Errorf("invalid settlement contract address %q", cfg.Ethereum.SettlementContract)
	}
	contractAddr := common.HexToAddress(cfg.Ethereum.SettlementContract)
	if err := contracts.VerifySettlementContract(ctx, client, contractAddr, cfg.Ethereum.ChainID); err != nil {
		return err
	}
	log.Info("Settlement contract verified",
		zap.String("contract", contractAddr.Hex()),
		zap.Uint64("chain_id", cfg.Ethereum.ChainID))

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to read chain head: %w", err)
	}
	stream := blocks.NewStream(head)
	go blocks.NewPoller(client, stream, cfg.Ethereum.BlockPollInterval, log).Run(ctx)

	httpSolver, err := solver.NewHTTPSolver(cfg.Solver, log)
	if err != nil {
		return err
	}

	signer, err := settlement.NewKeyedSigner(cfg.Submission.PrivateKey, cfg.Ethereum.ChainID)
	if err != nil {
		return err
	}

	gasEstimator := conversion.NewNodeGasEstimator(client)
	converter := conversion.NewConverter(conversion.NoLiquidity{}, gasEstimator, cfg.Driver.SolveDeadline, log)
	rater := settlement.NewContractRater(client, contractAddr, log)
	submitter := settlement.NewSubmitter(client, signer, contractAddr, cfg.Submission, log)
	drv := driver.NewDriver(httpSolver, converter, stream, rater, submitter, gasEstimator, cfg.Driver.SolveDeadline, log)

	var cache redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("Redis unavailable, serving competition reads uncached", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	server := api.NewServer(cfg.Server, drv, store, cache, cfg.Redis.CacheTTL, producer, cfg.Solver.Name, log)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Run() }()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runMigrations(cfg config.DatabaseConfig) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
