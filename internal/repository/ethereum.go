package repository

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/models"
	"token_distributor/internal/utils"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const nativeDecimals = 18

// EthClient is the subset of *ethclient.Client the repository depends on.
type EthClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type FeeData struct {
	GasPrice *big.Int
}

type PendingTransfer struct {
	Hash      common.Hash
	Nonce     uint64
	To        common.Address
	RawAmount *big.Int
}

type Receipt struct {
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
}

// EthereumRepository is the chain client for one signing key and one token contract.
type EthereumRepository interface {
	SignerAddress() common.Address
	GetDecimals(ctx context.Context) (uint8, error)
	GetBalance(ctx context.Context, address common.Address) (decimal.Decimal, error)
	GetNativeBalance(ctx context.Context, address common.Address) (decimal.Decimal, error)
	GetTokenInfo(ctx context.Context) (*models.TokenInfo, error)
	EstimateTransferGas(ctx context.Context, to common.Address, rawAmount *big.Int) (uint64, error)
	GetFeeData(ctx context.Context) (*FeeData, error)
	SendTransfer(ctx context.Context, to common.Address, rawAmount *big.Int, gasLimit uint64, gasPrice *big.Int) (*PendingTransfer, error)
	WaitForReceipt(ctx context.Context, pending *PendingTransfer) (*Receipt, error)
	Close()
}

type ethereumRepository struct {
	client    EthClient
	config    *config.Config
	contract  config.Contract
	from      common.Address
	submitter *submitter

	decimalsMu sync.Mutex
	decimals   *uint8

	receiptTimeout time.Duration
	pollInterval   time.Duration
	maxRetries     int
	readBackOff    func() backoff.BackOff
}

func NewEthereumRepository(client EthClient, config *config.Config, key *ecdsa.PrivateKey) EthereumRepository {
	receiptTimeout := config.Distribution.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = 2 * time.Minute
	}
	pollInterval := config.Distribution.ReceiptPollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxRetries := config.Distribution.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &ethereumRepository{
		client:         client,
		config:         config,
		contract:       config.TokenContract,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		submitter:      newSubmitter(client, key, big.NewInt(config.ChainId)),
		receiptTimeout: receiptTimeout,
		pollInterval:   pollInterval,
		maxRetries:     maxRetries,
		readBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

func (r *ethereumRepository) SignerAddress() common.Address {
	return r.from
}

func (r *ethereumRepository) Close() {
	r.submitter.Close()
}

func (r *ethereumRepository) GetDecimals(ctx context.Context) (uint8, error) {
	r.decimalsMu.Lock()
	defer r.decimalsMu.Unlock()
	if r.decimals != nil {
		return *r.decimals, nil
	}

	values, err := r.callContract(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	r.decimals = &decimals
	return decimals, nil
}

func (r *ethereumRepository) GetBalance(ctx context.Context, address common.Address) (decimal.Decimal, error) {
	decimals, err := r.GetDecimals(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	values, err := r.callContract(ctx, "balanceOf", address)
	if err != nil {
		return decimal.Zero, err
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected balanceOf type %T", values[0])
	}
	return utils.FromBaseUnits(raw, decimals), nil
}

func (r *ethereumRepository) GetNativeBalance(ctx context.Context, address common.Address) (decimal.Decimal, error) {
	wei, err := retryRead(ctx, r, func() (*big.Int, error) {
		return r.client.BalanceAt(ctx, address, nil)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch native balance: %w", err)
	}
	return utils.FromBaseUnits(wei, nativeDecimals), nil
}

func (r *ethereumRepository) GetTokenInfo(ctx context.Context) (*models.TokenInfo, error) {
	info := &models.TokenInfo{
		ContractAddress: r.contract.Address.Hex(),
		Network:         r.config.Network,
		ChainId:         strconv.FormatInt(r.config.ChainId, 10),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := r.callString(ctx, "name")
		info.Name = name
		return err
	})
	g.Go(func() error {
		symbol, err := r.callString(ctx, "symbol")
		info.Symbol = symbol
		return err
	})
	g.Go(func() error {
		decimals, err := r.GetDecimals(ctx)
		info.Decimals = decimals
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

func (r *ethereumRepository) EstimateTransferGas(ctx context.Context, to common.Address, rawAmount *big.Int) (uint64, error) {
	data, err := r.contract.ABI.Pack("transfer", to, rawAmount)
	if err != nil {
		return 0, fmt.Errorf("failed to pack transfer call: %w", err)
	}
	gas, err := r.client.EstimateGas(ctx, ethereum.CallMsg{
		From: r.from,
		To:   &r.contract.Address,
		Data: data,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("stopped estimating gas: %w", ctxErr)
		}
		return 0, &EstimationError{Err: err}
	}
	return gas, nil
}

func (r *ethereumRepository) GetFeeData(ctx context.Context) (*FeeData, error) {
	gasPrice, err := retryRead(ctx, r, func() (*big.Int, error) {
		return r.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	return &FeeData{GasPrice: gasPrice}, nil
}

func (r *ethereumRepository) SendTransfer(ctx context.Context, to common.Address, rawAmount *big.Int, gasLimit uint64, gasPrice *big.Int) (*PendingTransfer, error) {
	data, err := r.contract.ABI.Pack("transfer", to, rawAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer call: %w", err)
	}
	tx, err := r.submitter.Submit(ctx, r.contract.Address, data, gasLimit, gasPrice)
	if err != nil {
		return nil, err
	}
	return &PendingTransfer{
		Hash:      tx.Hash(),
		Nonce:     tx.Nonce(),
		To:        to,
		RawAmount: rawAmount,
	}, nil
}

// WaitForReceipt polls until the transaction is mined or the receipt timeout elapses.
// A cancelled ctx is returned as the context error, not as a ConfirmationError: the
// transaction may still confirm.
func (r *ethereumRepository) WaitForReceipt(ctx context.Context, pending *PendingTransfer) (*Receipt, error) {
	operation := func() (*types.Receipt, error) {
		return r.client.TransactionReceipt(ctx, pending.Hash)
	}
	receipt, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.pollInterval)),
		backoff.WithMaxElapsedTime(r.receiptTimeout),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("stopped waiting for %s: %w", pending.Hash.Hex(), ctxErr)
		}
		return nil, &ConfirmationError{TxHash: pending.Hash.Hex(), Err: err}
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &ConfirmationError{TxHash: pending.Hash.Hex(), Reverted: true}
	}
	return &Receipt{
		BlockNumber: blockNumber,
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}, nil
}

func (r *ethereumRepository) callContract(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.contract.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &r.contract.Address, Data: data}

	output, err := retryRead(ctx, r, func() ([]byte, error) {
		return r.client.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	values, err := r.contract.ABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return values, nil
}

func (r *ethereumRepository) callString(ctx context.Context, method string) (string, error) {
	values, err := r.callContract(ctx, method)
	if err != nil {
		return "", err
	}
	value, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s type %T", method, values[0])
	}
	return value, nil
}

func retryRead[T any](ctx context.Context, r *ethereumRepository, operation backoff.Operation[T]) (T, error) {
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.readBackOff()),
		backoff.WithMaxTries(uint(r.maxRetries)),
	)
}
