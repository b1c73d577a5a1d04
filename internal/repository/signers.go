package repository

import (
	"crypto/ecdsa"
	"sync"

	"token_distributor/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerRegistry hands out one EthereumRepository per signing address so that
// every key, including custodial wallet keys, has exactly one submission queue.
type SignerRegistry struct {
	client EthClient
	config *config.Config

	mu           sync.Mutex
	repositories map[common.Address]EthereumRepository
}

func NewSignerRegistry(client EthClient, config *config.Config) *SignerRegistry {
	return &SignerRegistry{
		client:       client,
		config:       config,
		repositories: make(map[common.Address]EthereumRepository),
	}
}

func (r *SignerRegistry) ForKey(key *ecdsa.PrivateKey) EthereumRepository {
	address := crypto.PubkeyToAddress(key.PublicKey)

	r.mu.Lock()
	defer r.mu.Unlock()
	if repository, ok := r.repositories[address]; ok {
		return repository
	}
	repository := NewEthereumRepository(r.client, r.config, key)
	r.repositories[address] = repository
	return repository
}

func (r *SignerRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for address, repository := range r.repositories {
		repository.Close()
		delete(r.repositories, address)
	}
}
