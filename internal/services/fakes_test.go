package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/models"
	"token_distributor/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	testSigner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testToken     = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testWalletA   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testWalletB   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	testWalletC   = "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
	testBadWallet = "0x123"
)

type sentTransfer struct {
	To        common.Address
	RawAmount *big.Int
	GasLimit  uint64
	GasPrice  *big.Int
}

// fakeRepository is an in-memory EthereumRepository. Transfers succeed unless an
// error is configured.
type fakeRepository struct {
	mu sync.Mutex

	decimals      uint8
	balance       decimal.Decimal
	nativeBalance decimal.Decimal
	gasEstimate   uint64
	gasPrice      *big.Int

	estimateErr error
	sendErr     error
	reverted    bool
	// blockEstimate makes EstimateTransferGas wait until ctx is done.
	blockEstimate bool
	// blockReceipts makes WaitForReceipt wait until ctx is done.
	blockReceipts bool

	calls map[string]int
	sent  []sentTransfer
	nonce uint64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		decimals:      18,
		balance:       decimal.NewFromInt(1_000),
		nativeBalance: decimal.NewFromInt(2),
		gasEstimate:   50_000,
		gasPrice:      big.NewInt(1_000_000_000),
		calls:         make(map[string]int),
	}
}

func (f *fakeRepository) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *fakeRepository) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRepository) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeRepository) SignerAddress() common.Address {
	return testSigner
}

func (f *fakeRepository) GetDecimals(ctx context.Context) (uint8, error) {
	f.count("GetDecimals")
	return f.decimals, nil
}

func (f *fakeRepository) GetBalance(ctx context.Context, address common.Address) (decimal.Decimal, error) {
	f.count("GetBalance")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeRepository) GetNativeBalance(ctx context.Context, address common.Address) (decimal.Decimal, error) {
	f.count("GetNativeBalance")
	return f.nativeBalance, nil
}

func (f *fakeRepository) GetTokenInfo(ctx context.Context) (*models.TokenInfo, error) {
	f.count("GetTokenInfo")
	return &models.TokenInfo{Name: "Work Token", Symbol: "WORK", Decimals: f.decimals, ContractAddress: testToken.Hex()}, nil
}

func (f *fakeRepository) EstimateTransferGas(ctx context.Context, to common.Address, rawAmount *big.Int) (uint64, error) {
	f.count("EstimateTransferGas")
	if f.blockEstimate {
		<-ctx.Done()
		return 0, fmt.Errorf("stopped estimating gas: %w", ctx.Err())
	}
	if f.estimateErr != nil {
		return 0, &repository.EstimationError{Err: f.estimateErr}
	}
	return f.gasEstimate, nil
}

func (f *fakeRepository) GetFeeData(ctx context.Context) (*repository.FeeData, error) {
	f.count("GetFeeData")
	return &repository.FeeData{GasPrice: f.gasPrice}, nil
}

func (f *fakeRepository) SendTransfer(ctx context.Context, to common.Address, rawAmount *big.Int, gasLimit uint64, gasPrice *big.Int) (*repository.PendingTransfer, error) {
	f.count("SendTransfer")
	if f.sendErr != nil {
		return nil, f.sendErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentTransfer{To: to, RawAmount: rawAmount, GasLimit: gasLimit, GasPrice: gasPrice})
	f.nonce++
	f.balance = f.balance.Sub(decimal.NewFromBigInt(rawAmount, -int32(f.decimals)))
	return &repository.PendingTransfer{
		Hash:      common.BigToHash(new(big.Int).SetUint64(f.nonce)),
		Nonce:     f.nonce - 1,
		To:        to,
		RawAmount: rawAmount,
	}, nil
}

func (f *fakeRepository) WaitForReceipt(ctx context.Context, pending *repository.PendingTransfer) (*repository.Receipt, error) {
	f.count("WaitForReceipt")
	if f.blockReceipts {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.reverted {
		return nil, &repository.ConfirmationError{TxHash: pending.Hash.Hex(), Reverted: true}
	}
	return &repository.Receipt{BlockNumber: 1000 + pending.Nonce, GasUsed: 41_000, Status: 1}, nil
}

func (f *fakeRepository) Close() {}

func (f *fakeRepository) sentTransfers() []sentTransfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentTransfer(nil), f.sent...)
}

type fakeStore struct {
	mu      sync.Mutex
	entries []models.DistributionEntry
	err     error
}

func (s *fakeStore) AddDistribution(ctx context.Context, entry models.DistributionEntry) error {
	return s.AddDistributions(ctx, []models.DistributionEntry{entry})
}

func (s *fakeStore) AddDistributions(ctx context.Context, entries []models.DistributionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *fakeStore) FindRecentDistributions(ctx context.Context, limit int64) ([]models.DistributionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DistributionEntry(nil), s.entries...), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ChainId:         8060,
		Network:         "Knightsbridge",
		ExplorerBaseURL: "https://kxcoscan.com",
		TokenContract:   config.Contract{Address: testToken},
		Distribution: config.DistributionConfig{
			BulkConcurrency: 1,
			ReceiptTimeout:  time.Second,
		},
		CronSchedule:        "*/1 * * * * *",
		LowBalanceThreshold: decimal.NewFromInt(100),
	}
}

func rawRequest(id, wallet string, hours models.HoursInput) models.RawDistributionRequest {
	return models.RawDistributionRequest{
		Name:          "Worker " + id,
		Email:         id + "@x.com",
		ExternalId:    id,
		WalletAddress: wallet,
		HrsWorked:     hours,
	}
}
