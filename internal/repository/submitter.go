package repository

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type submitRequest struct {
	ctx      context.Context
	to       common.Address
	data     []byte
	gasLimit uint64
	gasPrice *big.Int
	reply    chan submitResult
}

type submitResult struct {
	tx  *types.Transaction
	err error
}

// submitter owns the nonce sequence of one signing key. Every transaction for the
// key is signed and sent from its single goroutine, one at a time.
type submitter struct {
	client   EthClient
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer
	requests chan submitRequest
	done     chan struct{}
	once     sync.Once

	// owned by run
	nonce      uint64
	nonceKnown bool
}

func newSubmitter(client EthClient, key *ecdsa.PrivateKey, chainId *big.Int) *submitter {
	s := &submitter{
		client:   client,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		signer:   types.LatestSignerForChainID(chainId),
		requests: make(chan submitRequest),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *submitter) run() {
	for {
		select {
		case req := <-s.requests:
			tx, err := s.submit(req)
			req.reply <- submitResult{tx: tx, err: err}
		case <-s.done:
			return
		}
	}
}

func (s *submitter) submit(req submitRequest) (*types.Transaction, error) {
	if err := req.ctx.Err(); err != nil {
		return nil, err
	}
	if !s.nonceKnown {
		nonce, err := s.client.PendingNonceAt(req.ctx, s.from)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pending nonce: %w", err)
		}
		s.nonce = nonce
		s.nonceKnown = true
	}

	tx, err := types.SignNewTx(s.key, s.signer, &types.LegacyTx{
		Nonce:    s.nonce,
		GasPrice: req.gasPrice,
		Gas:      req.gasLimit,
		To:       &req.to,
		Value:    big.NewInt(0),
		Data:     req.data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(req.ctx, tx); err != nil {
		// The node may have seen a different nonce than ours; re-read it next time.
		s.nonceKnown = false
		return nil, fmt.Errorf("failed to send transaction with nonce %d: %w", s.nonce, err)
	}
	log.Printf("Submitted transaction %s with nonce %d", tx.Hash().Hex(), s.nonce)
	s.nonce++
	return tx, nil
}

// Submit queues a transaction and blocks until it has been sent or rejected.
// Once queued, the request is always answered, so the caller learns the hash of
// anything that reached the node.
func (s *submitter) Submit(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (*types.Transaction, error) {
	reply := make(chan submitResult, 1)
	req := submitRequest{ctx: ctx, to: to, data: data, gasLimit: gasLimit, gasPrice: gasPrice, reply: reply}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSubmitterClosed
	}

	result := <-reply
	return result.tx, result.err
}

func (s *submitter) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
