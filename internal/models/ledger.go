package models

import "time"

type DistributionEntry struct {
	JobId             string             `bson:"jobId,omitempty" json:"jobId,omitempty"`
	Recipient         Recipient          `bson:"recipient" json:"recipient"`
	Success           bool               `bson:"success" json:"success"`
	TokensDistributed string             `bson:"tokensDistributed,omitempty" json:"tokensDistributed,omitempty"`
	ErrorKind         string             `bson:"errorKind,omitempty" json:"errorKind,omitempty"`
	Message           string             `bson:"message,omitempty" json:"message,omitempty"`
	Transaction       *TransactionRecord `bson:"transaction,omitempty" json:"transaction,omitempty"`
	CreatedAt         time.Time          `bson:"created_at,omitempty" json:"createdAt"`
}

func NewDistributionEntry(jobId string, result DistributionResult) DistributionEntry {
	entry := DistributionEntry{
		JobId:       jobId,
		Recipient:   result.Recipient,
		Success:     result.Success,
		ErrorKind:   result.ErrorKind,
		Message:     result.Message,
		Transaction: result.Transaction,
	}
	if result.Distribution != nil {
		entry.TokensDistributed = result.Distribution.TokensDistributed.String()
	}
	return entry
}

// CustodialWallet is resolved by the user store; the private key is encrypted at rest.
type CustodialWallet struct {
	UserId              string `bson:"userId"`
	Address             string `bson:"address"`
	EncryptedPrivateKey string `bson:"encryptedPrivateKey"`
	IsActive            bool   `bson:"isActive"`
}
