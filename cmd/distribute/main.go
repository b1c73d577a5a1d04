// Command distribute runs a bulk token distribution from a CSV file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"token_distributor/internal/config"
	"token_distributor/internal/models"
	"token_distributor/internal/processors"
	"token_distributor/internal/repository"
	"token_distributor/internal/services"
	"token_distributor/internal/utils"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

type options struct {
	inputPath  string
	outputPath string
	dryRun     bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Error running distribution: %v", err)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("distribute", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.inputPath, "input", "i", "", "CSV with columns name,email,id,walletAddress,hrsWorked")
	flagSet.StringVarP(&opts.outputPath, "output", "o", "distribution_results.csv", "where to write per-recipient results")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "validate the input and check the signer balance without sending")
	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if opts.inputPath == "" {
		return opts, errors.New("--input is required")
	}
	return opts, nil
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	input, err := os.Open(opts.inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	raws, err := readRequests(input)
	input.Close()
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", opts.inputPath, err)
	}
	if len(raws) == 0 {
		return errors.New("input has no recipients")
	}
	log.Printf("Loaded %d recipients from %s", len(raws), opts.inputPath)

	config, err := config.LoadConfig()
	if err != nil {
		return err
	}
	client, err := ethclient.Dial(config.RPC_URL)
	if err != nil {
		return fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}
	defer client.Close()

	ethereumRepository := repository.NewEthereumRepository(client, config, config.SigningKey)
	defer ethereumRepository.Close()
	processor := processors.NewRequestProcessor(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.dryRun {
		return dryRun(ctx, ethereumRepository, processor, raws)
	}

	distributor := services.NewBulkDistributor(
		services.NewDistributionService(ethereumRepository, config, nil),
		processor,
		nil,
		nil,
		config,
	)

	bar := progressbar.Default(int64(len(raws)), "distributing")
	results := make([]models.DistributionResult, len(raws))
	for event := range distributor.DistributeBulkStream(ctx, raws) {
		switch event.Type {
		case models.BulkEventProgress:
			_ = bar.Add(1)
		case models.BulkEventComplete:
			_ = bar.Finish()
			log.Printf("✅ %d recipients: %d succeeded, %d failed",
				event.Summary.TotalRecipients, event.Summary.SuccessfulDistributions, event.Summary.FailedDistributions)
		}
		if event.Result != nil {
			results[event.Index] = *event.Result
		}
	}

	output, err := os.Create(opts.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer output.Close()
	if err := writeResults(output, results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	log.Printf("Results written to %s", opts.outputPath)
	return nil
}

func dryRun(ctx context.Context, repo repository.EthereumRepository, processor *processors.RequestProcessor, raws []models.RawDistributionRequest) error {
	total := decimal.Zero
	invalid := 0
	for i, raw := range raws {
		request, err := processor.ProcessRequest(raw)
		if err == nil && !utils.IsValidAddress(request.WalletAddress) {
			err = &services.InvalidAddressError{Address: request.WalletAddress}
		}
		if err != nil {
			invalid++
			log.Printf("Row %d (%s): %v", i+1, raw.ExternalId, err)
			continue
		}
		total = total.Add(request.TokensToDistribute())
	}

	balance, err := repo.GetBalance(ctx, repo.SignerAddress())
	if err != nil {
		return fmt.Errorf("failed to fetch signer balance: %w", err)
	}
	log.Printf("Dry run: %d valid, %d invalid, %s tokens required, signer balance %s",
		len(raws)-invalid, invalid, total, balance)
	if balance.LessThan(total) {
		return &services.InsufficientBalanceError{Required: total, Available: balance}
	}
	return nil
}
