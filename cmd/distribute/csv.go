package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"token_distributor/internal/models"
)

var requiredColumns = []string{"name", "email", "id", "walletAddress", "hrsWorked"}

var resultHeader = []string{
	"index", "id", "name", "email", "walletAddress", "success",
	"tokensDistributed", "transactionHash", "explorerUrl", "errorKind", "message",
}

// readRequests parses a CSV with a header row naming the request columns in any order.
func readRequests(r io.Reader) ([]models.RawDistributionRequest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("input is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[strings.ToLower(name)]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	field := func(row []string, name string) string {
		i := columns[strings.ToLower(name)]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var requests []models.RawDistributionRequest
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		requests = append(requests, models.RawDistributionRequest{
			Name:          field(row, "name"),
			Email:         field(row, "email"),
			ExternalId:    field(row, "id"),
			WalletAddress: field(row, "walletAddress"),
			HrsWorked:     models.HoursInput(field(row, "hrsWorked")),
		})
	}
	return requests, nil
}

func writeResults(w io.Writer, results []models.DistributionResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(resultHeader); err != nil {
		return err
	}
	for i, result := range results {
		var tokens, txHash, explorerUrl string
		if result.Distribution != nil {
			tokens = result.Distribution.TokensDistributed.String()
		}
		if result.Transaction != nil {
			txHash = result.Transaction.TransactionHash
			explorerUrl = result.Transaction.ExplorerUrl
		}
		row := []string{
			strconv.Itoa(i),
			result.Recipient.ExternalId,
			result.Recipient.Name,
			result.Recipient.Email,
			result.Recipient.WalletAddress,
			strconv.FormatBool(result.Success),
			tokens,
			txHash,
			explorerUrl,
			result.ErrorKind,
			result.Message,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
