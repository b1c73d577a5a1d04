package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"token_distributor/internal/models"
	"token_distributor/internal/processors"
	"token_distributor/internal/services"
)

const timeoutMessage = "The token distribution operation is taking longer than expected. " +
	"Submitted transactions may still confirm; check the explorer or the distributions ledger before retrying."

type singleDistributionData struct {
	Recipient    models.Recipient          `json:"recipient"`
	Distribution *models.Allocation        `json:"distribution"`
	Transaction  *models.TransactionRecord `json:"transaction"`
}

type bulkDistributionData struct {
	models.BulkSummary
	Results []models.DistributionResult `json:"results"`
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status, code, database := "healthy", http.StatusOK, "disabled"
	if s.Database != nil {
		database = "connected"
		if err := s.Database.Health(); err != nil {
			log.Printf("Database health check failed: %v", err)
			status, code, database = "unhealthy", http.StatusServiceUnavailable, "unreachable"
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"service":   serviceName,
		"network":   s.App.Network,
		"chainId":   s.App.ChainId,
		"database":  database,
	})
}

func (s *server) tokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Repo.GetTokenInfo(r.Context())
	if err != nil {
		log.Printf("Error fetching token info: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch token info", err.Error())
		return
	}
	writeSuccess(w, "", info)
}

func (s *server) listDistributions(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeSuccess(w, "Distribution ledger is not configured", []models.DistributionEntry{})
		return
	}
	limit := int64(defaultListSize)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "Invalid limit. Must be between 1 and 500.", nil)
			return
		}
		limit = parsed
	}

	entries, err := s.Store.FindRecentDistributions(r.Context(), limit)
	if err != nil {
		log.Printf("Error fetching distributions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch distributions", err.Error())
		return
	}
	writeSuccess(w, "Distributions endpoint", entries)
}

func (s *server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *processors.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Message, map[string]string{"field": validationErr.Field})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), nil)
}

func (s *server) distributeTokens(w http.ResponseWriter, r *http.Request) {
	var body models.DistributionBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.IsBulk() {
		s.distributeBulk(w, r, body)
		return
	}

	request, err := s.Processor.ProcessRequest(body.RawDistributionRequest)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.App.Server.SingleRequestTimeout)
	defer cancel()

	log.Printf("Distributing %s tokens to %s for %s hours worked", request.TokensToDistribute(), request.WalletAddress, request.HoursWorked)
	result := s.Distributor.DistributeRequest(ctx, request)
	if !result.Success {
		if result.ErrorKind == services.KindTimeout {
			writeJSON(w, http.StatusGatewayTimeout, response{
				Success:   false,
				Error:     "Request timeout",
				Message:   timeoutMessage,
				Details:   result.Message,
				ErrorKind: result.ErrorKind,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, response{
			Success:   false,
			Error:     "Failed to distribute tokens",
			Details:   result.Message,
			ErrorKind: result.ErrorKind,
		})
		return
	}

	writeSuccess(w, "Tokens distributed successfully", singleDistributionData{
		Recipient:    result.Recipient,
		Distribution: result.Distribution,
		Transaction:  result.Transaction,
	})
}

func (s *server) distributeBulk(w http.ResponseWriter, r *http.Request, body models.DistributionBody) {
	raws, err := s.Processor.ProcessBulkRequest(body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.App.Server.BulkRequestTimeout)
	defer cancel()

	results := s.Distributor.DistributeBulk(ctx, raws)
	data := bulkDistributionData{BulkSummary: models.Summarize(results), Results: results}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, response{
			Success: false,
			Error:   "Request timeout",
			Message: timeoutMessage,
			Data:    data,
		})
		return
	}
	writeSuccess(w, fmt.Sprintf("Bulk distribution completed: %d succeeded, %d failed",
		data.SuccessfulDistributions, data.FailedDistributions), data)
}

// distributeTokensStream runs a bulk job and reports it as Server-Sent Events. The
// job runs on its own deadline, so a client that disconnects does not stop it.
func (s *server) distributeTokensStream(w http.ResponseWriter, r *http.Request) {
	var body models.DistributionBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	raws := []models.RawDistributionRequest{body.RawDistributionRequest}
	if body.IsBulk() {
		var err error
		if raws, err = s.Processor.ProcessBulkRequest(body); err != nil {
			writeValidationError(w, err)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.App.Server.BulkRequestTimeout)
	events := s.Distributor.DistributeBulkStream(ctx, raws)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				cancel()
				return
			}
			if err := writeEvent(w, event); err != nil {
				log.Printf("Error writing stream event: %v", err)
			}
			flusher.Flush()
		case <-r.Context().Done():
			log.Printf("Stream client disconnected; bulk job continues in background")
			go func() {
				for range events {
				}
				cancel()
			}()
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event models.BulkEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}
