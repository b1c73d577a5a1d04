package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"token_distributor/internal/metrics"
	"token_distributor/internal/models"
	"token_distributor/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistribute_Success(t *testing.T) {
	repo := newFakeRepository()
	m := metrics.New()
	service := NewDistributionService(repo, testConfig(t), m)

	metadata := map[string]string{"name": "John Doe", "id": "EMP001"}
	record, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(8), metadata)
	require.NoError(t, err)

	sent := repo.sentTransfers()
	require.Len(t, sent, 1)
	eight, _ := new(big.Int).SetString("8000000000000000000", 10)
	assert.Equal(t, eight, sent[0].RawAmount)
	assert.Equal(t, common.HexToAddress(testWalletA), sent[0].To)
	assert.Equal(t, uint64(60_000), sent[0].GasLimit)

	assert.Equal(t, models.TransactionStatusSuccess, record.Status)
	assert.Equal(t, "8", record.Amount)
	assert.Equal(t, testWalletA, record.Recipient)
	assert.Equal(t, testToken.Hex(), record.TokenContract)
	assert.Equal(t, "8060", record.ChainId)
	assert.Equal(t, "Knightsbridge", record.Network)
	assert.Equal(t, "41000", record.GasUsed)
	assert.Equal(t, "1000000000", record.GasPrice)
	assert.Equal(t, uint64(1000), record.BlockNumber)
	assert.Equal(t, "https://kxcoscan.com/tx/"+record.TransactionHash, record.ExplorerUrl)
	assert.Equal(t, metadata, record.Metadata)
	assert.WithinDuration(t, time.Now(), record.Timestamp, time.Minute)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Distributions.WithLabelValues("success")))
}

func TestDistribute_InvalidAddressMakesNoCalls(t *testing.T) {
	for _, address := range []string{testBadWallet, "", "0xZZ997970C51812dc3A010C7d01b50e0d17dc79C8", "hello"} {
		repo := newFakeRepository()
		service := NewDistributionService(repo, testConfig(t), nil)

		_, err := service.Distribute(context.Background(), address, decimal.NewFromInt(1), nil)
		var addressErr *InvalidAddressError
		require.ErrorAs(t, err, &addressErr, address)
		assert.Equal(t, address, addressErr.Address)
		assert.Equal(t, KindInvalidAddress, ErrorKind(err))
		assert.Zero(t, repo.totalCalls())
	}
}

func TestDistribute_InsufficientBalance(t *testing.T) {
	repo := newFakeRepository()
	repo.balance = decimal.RequireFromString("5.5")
	service := NewDistributionService(repo, testConfig(t), nil)

	_, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(8), nil)
	var balanceErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.Equal(t, "8", balanceErr.Required.String())
	assert.Equal(t, "5.5", balanceErr.Available.String())
	assert.Contains(t, err.Error(), "Required: 8, Available: 5.5")

	assert.Zero(t, repo.callCount("EstimateTransferGas"))
	assert.Zero(t, repo.callCount("SendTransfer"))
	assert.Equal(t, "5.5", repo.balance.String())
}

func TestDistribute_ExactBalanceIsEnough(t *testing.T) {
	repo := newFakeRepository()
	repo.balance = decimal.NewFromInt(8)
	service := NewDistributionService(repo, testConfig(t), nil)

	_, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(8), nil)
	require.NoError(t, err)
	assert.True(t, repo.balance.IsZero())
}

func TestDistribute_NegativeAmount(t *testing.T) {
	repo := newFakeRepository()
	service := NewDistributionService(repo, testConfig(t), nil)

	_, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(-1), nil)
	assert.Equal(t, KindInvalidAmount, ErrorKind(err))
	assert.Zero(t, repo.totalCalls())
}

func TestDistribute_EstimationFailureSendsNothing(t *testing.T) {
	repo := newFakeRepository()
	repo.estimateErr = errors.New("execution reverted")
	service := NewDistributionService(repo, testConfig(t), nil)

	_, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(1), nil)
	assert.Equal(t, KindEstimation, ErrorKind(err))
	assert.Zero(t, repo.callCount("SendTransfer"))
}

func TestDistribute_DeadlineDuringEstimationIsTimeout(t *testing.T) {
	repo := newFakeRepository()
	repo.blockEstimate = true
	service := NewDistributionService(repo, testConfig(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := service.Distribute(ctx, testWalletA, decimal.NewFromInt(1), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, ErrorKind(err))
	assert.Zero(t, repo.callCount("SendTransfer"))
}

func TestDistribute_SubmissionRejected(t *testing.T) {
	repo := newFakeRepository()
	repo.sendErr = errors.New("replacement transaction underpriced")
	service := NewDistributionService(repo, testConfig(t), nil)

	_, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(1), nil)
	var submissionErr *SubmissionError
	require.ErrorAs(t, err, &submissionErr)
	assert.Equal(t, KindSubmission, ErrorKind(err))
}

func TestDistribute_Reverted(t *testing.T) {
	repo := newFakeRepository()
	repo.reverted = true
	service := NewDistributionService(repo, testConfig(t), nil)

	record, err := service.Distribute(context.Background(), testWalletA, decimal.NewFromInt(1), nil)
	assert.Nil(t, record)
	var confirmationErr *repository.ConfirmationError
	require.ErrorAs(t, err, &confirmationErr)
	assert.True(t, confirmationErr.Reverted)
	assert.Equal(t, KindConfirmation, ErrorKind(err))
}

func TestDistribute_CallerTimeoutIsUnknownOutcome(t *testing.T) {
	repo := newFakeRepository()
	repo.blockReceipts = true
	service := NewDistributionService(repo, testConfig(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := service.Distribute(ctx, testWalletA, decimal.NewFromInt(1), nil)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.NotEmpty(t, timeoutErr.TxHash)
	assert.Equal(t, KindTimeout, ErrorKind(err))
	assert.Contains(t, err.Error(), "outcome unknown")
	assert.Equal(t, 1, repo.callCount("SendTransfer"))
}

func TestDistribute_ZeroAmount(t *testing.T) {
	repo := newFakeRepository()
	service := NewDistributionService(repo, testConfig(t), nil)

	record, err := service.Distribute(context.Background(), testWalletA, decimal.Zero, nil)
	require.NoError(t, err)
	assert.Equal(t, "0", record.Amount)
	require.Len(t, repo.sentTransfers(), 1)
	assert.Equal(t, 0, repo.sentTransfers()[0].RawAmount.Sign())
}

func TestDistribute_ExplorerURLIsDeterministic(t *testing.T) {
	config := testConfig(t)
	config.ExplorerBaseURL = "https://kxcoscan.com/"

	first, err := NewDistributionService(newFakeRepository(), config, nil).Distribute(context.Background(), testWalletA, decimal.NewFromInt(1), nil)
	require.NoError(t, err)
	second, err := NewDistributionService(newFakeRepository(), config, nil).Distribute(context.Background(), testWalletB, decimal.NewFromInt(2), nil)
	require.NoError(t, err)

	// both fakes hand out the same first hash
	assert.Equal(t, first.TransactionHash, second.TransactionHash)
	assert.Equal(t, first.ExplorerUrl, second.ExplorerUrl)
	assert.Equal(t, "https://kxcoscan.com/tx/"+first.TransactionHash, first.ExplorerUrl)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{&InvalidAddressError{Address: "x"}, KindInvalidAddress},
		{&InsufficientBalanceError{}, KindInsufficientBalance},
		{&repository.EstimationError{Err: errors.New("revert")}, KindEstimation},
		{&repository.ConfirmationError{TxHash: "0x1"}, KindConfirmation},
		{&TimeoutError{TxHash: "0x1", Err: context.DeadlineExceeded}, KindTimeout},
		{&SubmissionError{Err: errors.New("nonce too low")}, KindSubmission},
		{context.Canceled, KindCancelled},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, ErrorKind(tt.err))
	}
}
