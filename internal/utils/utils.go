package utils

import (
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Gas limit safety margin, as a percentage of the estimate.
const gasMarginPercent = 120

// ToBaseUnits scales a human amount to the token's integer base units.
// Precision beyond the token's decimals is truncated, never rounded up.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

func ApplyGasMargin(estimate uint64) uint64 {
	return estimate * gasMarginPercent / 100
}

func ExplorerURL(baseURL string, txHash string) string {
	return strings.TrimRight(baseURL, "/") + "/tx/" + txHash
}

// IsValidAddress accepts 40 hex characters with an optional 0x prefix. Mixed-case
// input must carry a correct EIP-55 checksum.
func IsValidAddress(address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	hexPart := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return true
	}
	return common.HexToAddress(address).Hex() == "0x"+hexPart
}

func PrintNextExecution(c *cron.Cron) {
	entries := c.Entries()
	if len(entries) > 0 {
		nextRun := entries[0].Next
		log.Printf("Next cron execution scheduled for: %v", nextRun)
	}
}
