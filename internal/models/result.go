package models

// DistributionResult is the outcome for one recipient. Transaction is only set
// when Success is true; ErrorKind and Message only when it is false.
type DistributionResult struct {
	Recipient    Recipient          `json:"recipient"`
	Success      bool               `json:"success"`
	Distribution *Allocation        `json:"distribution,omitempty"`
	Transaction  *TransactionRecord `json:"transaction,omitempty"`
	ErrorKind    string             `json:"errorKind,omitempty"`
	Message      string             `json:"message,omitempty"`
}

type BulkSummary struct {
	TotalRecipients         int `json:"totalRecipients"`
	SuccessfulDistributions int `json:"successfulDistributions"`
	FailedDistributions     int `json:"failedDistributions"`
}

// Summarize derives the bulk counters from the results themselves.
func Summarize(results []DistributionResult) BulkSummary {
	summary := BulkSummary{TotalRecipients: len(results)}
	for _, result := range results {
		if result.Success {
			summary.SuccessfulDistributions++
		} else {
			summary.FailedDistributions++
		}
	}
	return summary
}

const (
	BulkEventStart    = "start"
	BulkEventProgress = "progress"
	BulkEventComplete = "complete"
)

type BulkEvent struct {
	Type    string              `json:"type"`
	JobId   string              `json:"jobId"`
	Index   int                 `json:"index"`
	Total   int                 `json:"total"`
	Result  *DistributionResult `json:"result,omitempty"`
	Summary *BulkSummary        `json:"summary,omitempty"`
}
