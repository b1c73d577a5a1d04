package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const DistributionRate = "1 token per hour"

// HoursInput accepts hrsWorked as either a JSON number or a JSON string and keeps
// the raw text for the validation layer to parse.
type HoursInput string

func (h *HoursInput) UnmarshalJSON(data []byte) error {
	*h = HoursInput(jsonText(data))
	return nil
}

// RawDistributionRequest is an inbound request before validation. Decoding never
// fails on field types: scalars are kept as text and a value that is not an object
// is marked Malformed, so one bad item of a bulk body only fails itself.
type RawDistributionRequest struct {
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	ExternalId    string     `json:"id"`
	WalletAddress string     `json:"walletAddress"`
	HrsWorked     HoursInput `json:"hrsWorked"`
	Malformed     bool       `json:"-"`
}

func (r *RawDistributionRequest) UnmarshalJSON(data []byte) error {
	*r = RawDistributionRequest{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		r.Malformed = true
		return nil
	}
	r.Name = jsonText(fields["name"])
	r.Email = jsonText(fields["email"])
	r.ExternalId = jsonText(fields["id"])
	r.WalletAddress = jsonText(fields["walletAddress"])
	r.HrsWorked = HoursInput(jsonText(fields["hrsWorked"]))
	return nil
}

// jsonText unquotes strings, maps null to "" and keeps any other value verbatim.
func jsonText(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	if strings.HasPrefix(text, `"`) {
		var value string
		if err := json.Unmarshal(raw, &value); err == nil {
			return value
		}
	}
	return text
}

func (r RawDistributionRequest) Recipient() Recipient {
	return Recipient{
		Name:          r.Name,
		Email:         r.Email,
		ExternalId:    r.ExternalId,
		WalletAddress: r.WalletAddress,
	}
}

// DistributionBody is the POST body of the distribute endpoints: either a single
// request or {recipients: [...]}.
type DistributionBody struct {
	RawDistributionRequest
	Recipients *[]RawDistributionRequest `json:"recipients"`
}

// UnmarshalJSON keeps the embedded request's decoder from swallowing recipients.
func (b *DistributionBody) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Recipients *[]RawDistributionRequest `json:"recipients"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	b.Recipients = envelope.Recipients
	return b.RawDistributionRequest.UnmarshalJSON(data)
}

func (b DistributionBody) IsBulk() bool {
	return b.Recipients != nil
}

// DistributionRequest is a validated request.
type DistributionRequest struct {
	Name          string
	Email         string
	ExternalId    string
	WalletAddress string
	HoursWorked   decimal.Decimal
}

// TokensToDistribute applies the 1 token per hour rate, rounding down.
func (r DistributionRequest) TokensToDistribute() decimal.Decimal {
	return r.HoursWorked.Floor()
}

func (r DistributionRequest) Recipient() Recipient {
	return Recipient{
		Name:          r.Name,
		Email:         r.Email,
		ExternalId:    r.ExternalId,
		WalletAddress: r.WalletAddress,
	}
}

// Metadata is passed through untouched into the transaction record.
func (r DistributionRequest) Metadata() map[string]string {
	return map[string]string{
		"name":      r.Name,
		"email":     r.Email,
		"id":        r.ExternalId,
		"hrsWorked": r.HoursWorked.String(),
	}
}

func (r DistributionRequest) Allocation() *Allocation {
	return &Allocation{
		HoursWorked:       json.Number(r.HoursWorked.String()),
		TokensDistributed: json.Number(r.TokensToDistribute().String()),
		Rate:              DistributionRate,
	}
}

type Recipient struct {
	Name          string `json:"name" bson:"name"`
	Email         string `json:"email" bson:"email"`
	ExternalId    string `json:"id" bson:"externalId"`
	WalletAddress string `json:"walletAddress" bson:"walletAddress"`
}

type Allocation struct {
	HoursWorked       json.Number `json:"hoursWorked"`
	TokensDistributed json.Number `json:"tokensDistributed"`
	Rate              string      `json:"rate"`
}
