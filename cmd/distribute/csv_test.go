package main

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"token_distributor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequestsAnyColumnOrder(t *testing.T) {
	input := strings.Join([]string{
		"\ufeffwalletAddress,hrsWorked,id,name,email",
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8,8.5,u1,Ada,ada@example.com",
		"",
		"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC, 3 ,u2,Grace,grace@example.com",
	}, "\n")

	requests, err := readRequests(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, models.RawDistributionRequest{
		Name:          "Ada",
		Email:         "ada@example.com",
		ExternalId:    "u1",
		WalletAddress: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		HrsWorked:     "8.5",
	}, requests[0])
	assert.Equal(t, models.HoursInput("3"), requests[1].HrsWorked)
}

func TestReadRequestsMissingColumn(t *testing.T) {
	_, err := readRequests(strings.NewReader("name,email,id,walletAddress\nAda,a@b.c,1,0x0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hrsWorked")
}

func TestReadRequestsEmptyInput(t *testing.T) {
	_, err := readRequests(strings.NewReader(""))
	require.Error(t, err)
}

func TestReadRequestsShortRowLeavesFieldsEmpty(t *testing.T) {
	requests, err := readRequests(strings.NewReader("name,email,id,walletAddress,hrsWorked\nAda,ada@example.com\n"))
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Empty(t, requests[0].WalletAddress)
	assert.Empty(t, requests[0].HrsWorked)
}

func TestWriteResults(t *testing.T) {
	results := []models.DistributionResult{
		{
			Recipient:    models.Recipient{Name: "Ada", ExternalId: "u1", WalletAddress: "0xabc"},
			Success:      true,
			Distribution: &models.Allocation{TokensDistributed: "8"},
			Transaction:  &models.TransactionRecord{TransactionHash: "0x01", ExplorerUrl: "https://explorer/tx/0x01"},
		},
		{
			Recipient: models.Recipient{Name: "Bob", ExternalId: "u2"},
			ErrorKind: "validation",
			Message:   "Missing required fields: walletAddress",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, resultHeader, rows[0])
	assert.Equal(t, []string{"0", "u1", "Ada", "", "0xabc", "true", "8", "0x01", "https://explorer/tx/0x01", "", ""}, rows[1])
	assert.Equal(t, []string{"1", "u2", "Bob", "", "", "false", "", "", "", "validation", "Missing required fields: walletAddress"}, rows[2])
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--input", "in.csv", "--dry-run"})
	require.NoError(t, err)
	assert.Equal(t, "in.csv", opts.inputPath)
	assert.Equal(t, "distribution_results.csv", opts.outputPath)
	assert.True(t, opts.dryRun)

	_, err = parseFlags(nil)
	require.Error(t, err)
}
