package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/encryption"
	"token_distributor/internal/metrics"
	"token_distributor/internal/processors"
	"token_distributor/internal/repository"
	"token_distributor/internal/server"
	"token_distributor/internal/services"

	"github.com/ethereum/go-ethereum/ethclient"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running token distributor: %v", err)
	}
}

func run() error {
	config, err := config.LoadConfig()
	if err != nil {
		return err
	}

	client, err := ethclient.Dial(config.RPC_URL)
	if err != nil {
		return fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}
	defer client.Close()

	signers := repository.NewSignerRegistry(client, config)
	defer signers.Close()
	ethereumRepository := signers.ForKey(config.SigningKey)
	log.Printf("✅ Signer %s on %s (chain %d)", ethereumRepository.SignerAddress().Hex(), config.Network, config.ChainId)

	serverConfig := server.Config{
		App:     config,
		Repo:    ethereumRepository,
		Signers: signers,
		Metrics: metrics.New(),
	}

	if config.Db.Enabled() {
		dbRepository, err := repository.ConnectToDb(config)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
		defer func() {
			if err := dbRepository.Disconnect(); err != nil {
				log.Printf("Error disconnecting from the database: %v", err)
			}
		}()
		serverConfig.Store = dbRepository
		serverConfig.Wallets = dbRepository
		serverConfig.Database = dbRepository
	} else {
		log.Println("DB_HOST not set, distribution ledger and custodial wallets disabled")
	}

	if config.CustodialKeyIdentity != "" {
		encryptionService, err := encryption.NewService(config.CustodialKeyIdentity)
		if err != nil {
			return fmt.Errorf("failed to load custodial key identity: %w", err)
		}
		serverConfig.Encryption = encryptionService
	}

	processor := processors.NewRequestProcessor(config)
	distributionService := services.NewDistributionService(ethereumRepository, config, serverConfig.Metrics)
	serverConfig.Processor = processor
	serverConfig.Distributor = services.NewBulkDistributor(distributionService, processor, serverConfig.Store, serverConfig.Metrics, config)

	monitor := services.NewBalanceMonitor(ethereumRepository, config, serverConfig.Metrics)
	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Server.Port),
		Handler:           server.New(serverConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("🚀 Backend server running on port %d", config.Server.Port)
		log.Printf("📡 Health check: http://localhost:%d/health", config.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	// Cleanup
	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), config.Server.BulkRequestTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
