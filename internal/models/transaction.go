package models

import "time"

const TransactionStatusSuccess = "success"

type TransactionRecord struct {
	TransactionHash string            `json:"transactionHash" bson:"transactionHash"`
	BlockNumber     uint64            `json:"blockNumber" bson:"blockNumber"`
	GasUsed         string            `json:"gasUsed" bson:"gasUsed"`
	GasPrice        string            `json:"gasPrice" bson:"gasPrice"`
	Status          string            `json:"status" bson:"status"`
	ExplorerUrl     string            `json:"explorerUrl" bson:"explorerUrl"`
	Recipient       string            `json:"recipient" bson:"recipient"`
	Amount          string            `json:"amount" bson:"amount"`
	TokenContract   string            `json:"tokenContract" bson:"tokenContract"`
	Network         string            `json:"network" bson:"network"`
	ChainId         string            `json:"chainId" bson:"chainId"`
	Timestamp       time.Time         `json:"timestamp" bson:"timestamp"`
	Metadata        map[string]string `json:"metadata" bson:"metadata"`
}

type TokenInfo struct {
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Decimals        uint8  `json:"decimals"`
	ContractAddress string `json:"contractAddress"`
	Network         string `json:"network"`
	ChainId         string `json:"chainId"`
}
