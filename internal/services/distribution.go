package services

import (
	"context"
	"fmt"
	"log"
	"maps"
	"strconv"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/metrics"
	"token_distributor/internal/models"
	"token_distributor/internal/repository"
	"token_distributor/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type DistributionService interface {
	// Distribute transfers tokenAmount tokens from the signer to recipientAddress and
	// waits for confirmation. No transaction is sent when a pre-submission check fails.
	Distribute(ctx context.Context, recipientAddress string, tokenAmount decimal.Decimal, metadata map[string]string) (*models.TransactionRecord, error)
}

type distributionService struct {
	repo    repository.EthereumRepository
	config  *config.Config
	metrics *metrics.Metrics
}

func NewDistributionService(repo repository.EthereumRepository, config *config.Config, metrics *metrics.Metrics) DistributionService {
	return &distributionService{
		repo:    repo,
		config:  config,
		metrics: metrics,
	}
}

func (s *distributionService) Distribute(ctx context.Context, recipientAddress string, tokenAmount decimal.Decimal, metadata map[string]string) (record *models.TransactionRecord, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = ErrorKind(err)
			log.Printf("Token distribution to %s failed: %v", recipientAddress, err)
		}
		s.metrics.ObserveDistribution(outcome, time.Since(start), tokenAmount)
	}()

	if !utils.IsValidAddress(recipientAddress) {
		return nil, &InvalidAddressError{Address: recipientAddress}
	}
	if tokenAmount.IsNegative() {
		return nil, &InvalidAmountError{Amount: tokenAmount}
	}
	to := common.HexToAddress(recipientAddress)
	log.Printf("Starting token distribution to %s: %s tokens", to.Hex(), tokenAmount)

	decimals, err := s.repo.GetDecimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token decimals: %w", err)
	}
	rawAmount := utils.ToBaseUnits(tokenAmount, decimals)

	balance, err := s.repo.GetBalance(ctx, s.repo.SignerAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signer balance: %w", err)
	}
	if balance.LessThan(tokenAmount) {
		return nil, &InsufficientBalanceError{Required: tokenAmount, Available: balance}
	}

	gasEstimate, err := s.repo.EstimateTransferGas(ctx, to, rawAmount)
	if err != nil {
		return nil, err
	}
	feeData, err := s.repo.GetFeeData(ctx)
	if err != nil {
		return nil, err
	}
	gasLimit := utils.ApplyGasMargin(gasEstimate)
	log.Printf("Gas estimate: %d, Gas limit: %d, Gas price: %s", gasEstimate, gasLimit, feeData.GasPrice)

	pending, err := s.repo.SendTransfer(ctx, to, rawAmount, gasLimit, feeData.GasPrice)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Err: err}
		}
		return nil, &SubmissionError{Err: err}
	}
	txHash := pending.Hash.Hex()
	log.Printf("Transaction sent: %s", txHash)

	receipt, err := s.repo.WaitForReceipt(ctx, pending)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{TxHash: txHash, Err: err}
		}
		return nil, err
	}
	log.Printf("Transaction confirmed in block: %d", receipt.BlockNumber)

	return &models.TransactionRecord{
		TransactionHash: txHash,
		BlockNumber:     receipt.BlockNumber,
		GasUsed:         strconv.FormatUint(receipt.GasUsed, 10),
		GasPrice:        feeData.GasPrice.String(),
		Status:          models.TransactionStatusSuccess,
		ExplorerUrl:     utils.ExplorerURL(s.config.ExplorerBaseURL, txHash),
		Recipient:       to.Hex(),
		Amount:          tokenAmount.String(),
		TokenContract:   s.config.TokenContract.Address.Hex(),
		Network:         s.config.Network,
		ChainId:         strconv.FormatInt(s.config.ChainId, 10),
		Timestamp:       time.Now().UTC(),
		Metadata:        maps.Clone(metadata),
	}, nil
}
