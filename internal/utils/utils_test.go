package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToBaseUnits(t *testing.T) {
	oneToken, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.Equal(t, oneToken, ToBaseUnits(decimal.NewFromInt(1), 18))
	assert.Equal(t, big.NewInt(8_000_000), ToBaseUnits(decimal.NewFromInt(8), 6))
	assert.Equal(t, big.NewInt(0), ToBaseUnits(decimal.Zero, 18))

	// 1.23456789 at 6 decimals keeps 1.234567, dropping the rest
	assert.Equal(t, big.NewInt(1_234_567), ToBaseUnits(decimal.RequireFromString("1.23456789"), 6))
	assert.Equal(t, big.NewInt(1), ToBaseUnits(decimal.RequireFromString("1.9"), 0))
}

func TestFromBaseUnits(t *testing.T) {
	raw, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, "1.5", FromBaseUnits(raw, 18).String())
	assert.Equal(t, "42", FromBaseUnits(big.NewInt(42), 0).String())
	assert.True(t, FromBaseUnits(nil, 18).IsZero())

	amount := decimal.RequireFromString("123.456")
	assert.True(t, amount.Equal(FromBaseUnits(ToBaseUnits(amount, 18), 18)))
}

func TestApplyGasMargin(t *testing.T) {
	assert.Equal(t, uint64(60_000), ApplyGasMargin(50_000))
	assert.Equal(t, uint64(25_804), ApplyGasMargin(21_504))
	// 21_503 * 1.2 = 25_803.6, rounded down
	assert.Equal(t, uint64(25_803), ApplyGasMargin(21_503))
	assert.Equal(t, uint64(0), ApplyGasMargin(0))
}

func TestExplorerURL_IsDeterministic(t *testing.T) {
	hash := "0xabc123"
	assert.Equal(t, "https://kxcoscan.com/tx/0xabc123", ExplorerURL("https://kxcoscan.com", hash))
	assert.Equal(t, "https://kxcoscan.com/tx/0xabc123", ExplorerURL("https://kxcoscan.com/", hash))
	assert.Equal(t, ExplorerURL("https://kxcoscan.com", hash), ExplorerURL("https://kxcoscan.com", hash))
}

func TestIsValidAddress(t *testing.T) {
	valid := []string{
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
		"70997970c51812dc3a010c7d01b50e0d17dc79c8",
		"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	}
	for _, address := range valid {
		assert.True(t, IsValidAddress(address), address)
	}

	invalid := []string{
		"",
		"0x123",
		"0x70a9f9c304181320187fc16a9d02a99c0b73b39",
		"0x70a9f9c304181320187fc16a9d02a99c0b73b390ff",
		"0xZZa9f9c304181320187fc16a9d02a99c0b73b390",
		"not-an-address",
		// bad checksum
		"0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	}
	for _, address := range invalid {
		assert.False(t, IsValidAddress(address), address)
	}
}
