package processors

import (
	"fmt"
	"strings"

	"token_distributor/internal/config"
	"token_distributor/internal/models"

	"github.com/shopspring/decimal"
)

// ValidationError is bad input shape, caught before any chain interaction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type RequestProcessor struct {
	allowZeroTokens bool
}

func NewRequestProcessor(config *config.Config) *RequestProcessor {
	return &RequestProcessor{
		allowZeroTokens: config.Distribution.AllowZeroTokens,
	}
}

// ProcessRequest validates one raw request. Checks run in order and the first
// failure wins. Addresses are not checked here.
func (p *RequestProcessor) ProcessRequest(raw models.RawDistributionRequest) (*models.DistributionRequest, error) {
	if raw.Malformed {
		return nil, &ValidationError{Field: "recipient", Message: "Recipient must be an object."}
	}
	fields := []struct {
		name  string
		value string
	}{
		{"name", raw.Name},
		{"email", raw.Email},
		{"id", raw.ExternalId},
		{"walletAddress", raw.WalletAddress},
		{"hrsWorked", string(raw.HrsWorked)},
	}
	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Field:   missing[0],
			Message: fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")),
		}
	}

	hoursWorked, err := decimal.NewFromString(strings.TrimSpace(string(raw.HrsWorked)))
	if err != nil {
		return nil, &ValidationError{Field: "hrsWorked", Message: "Invalid hours worked. Must be a number."}
	}
	if !hoursWorked.IsPositive() {
		return nil, &ValidationError{Field: "hrsWorked", Message: "Invalid hours worked. Must be a positive number."}
	}

	request := &models.DistributionRequest{
		Name:          strings.TrimSpace(raw.Name),
		Email:         strings.TrimSpace(raw.Email),
		ExternalId:    strings.TrimSpace(raw.ExternalId),
		WalletAddress: strings.TrimSpace(raw.WalletAddress),
		HoursWorked:   hoursWorked,
	}
	if !p.allowZeroTokens && request.TokensToDistribute().IsZero() {
		return nil, &ValidationError{
			Field:   "hrsWorked",
			Message: "Hours worked must be at least 1 to receive a token.",
		}
	}
	return request, nil
}

// ProcessBulkRequest checks the shape of a bulk body. Items are validated one by
// one later so that a bad item only fails itself.
func (p *RequestProcessor) ProcessBulkRequest(body models.DistributionBody) ([]models.RawDistributionRequest, error) {
	if body.Recipients == nil {
		return nil, &ValidationError{Field: "recipients", Message: "Recipients must be an array."}
	}
	if len(*body.Recipients) == 0 {
		return nil, &ValidationError{Field: "recipients", Message: "Recipients must be a non-empty array."}
	}
	return *body.Recipients, nil
}
