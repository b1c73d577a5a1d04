package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"token_distributor/internal/models"
	"token_distributor/internal/repository"
	"token_distributor/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var minWithdrawal = decimal.RequireFromString("0.01")

type withdrawRequest struct {
	ToAddress string          `json:"toAddress"`
	Amount    decimal.Decimal `json:"amount"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"msg"`
}

// custodialWallet resolves the caller's wallet, writing the error reply itself
// when it cannot.
func (s *server) custodialWallet(w http.ResponseWriter, r *http.Request) (*models.CustodialWallet, bool) {
	if s.Wallets == nil {
		writeError(w, http.StatusServiceUnavailable, "Custodial wallets are not configured", nil)
		return nil, false
	}
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Access token required", nil)
		return nil, false
	}

	wallet, err := s.Wallets.FindCustodialWallet(r.Context(), principal.UserId)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid or inactive user", nil)
			return nil, false
		}
		log.Printf("Error fetching custodial wallet for %s: %v", principal.UserId, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch custodial wallet", nil)
		return nil, false
	}
	return wallet, true
}

func (s *server) walletBalance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.custodialWallet(w, r)
	if !ok {
		return
	}
	balance, err := s.Repo.GetBalance(r.Context(), common.HexToAddress(wallet.Address))
	if err != nil {
		log.Printf("Balance fetch error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch balance", nil)
		return
	}
	writeSuccess(w, "", map[string]string{
		"balance":       balance.String(),
		"wallet":        wallet.Address,
		"tokenContract": s.App.TokenContract.Address.Hex(),
	})
}

func (s *server) walletNativeBalance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.custodialWallet(w, r)
	if !ok {
		return
	}
	balance, err := s.Repo.GetNativeBalance(r.Context(), common.HexToAddress(wallet.Address))
	if err != nil {
		log.Printf("Native balance fetch error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch native balance", nil)
		return
	}
	writeSuccess(w, "", map[string]string{
		"balance":  balance.String(),
		"wallet":   wallet.Address,
		"currency": nativeCurrency,
	})
}

func validateWithdrawal(req withdrawRequest) []fieldError {
	var errs []fieldError
	if len(strings.TrimSpace(req.ToAddress)) != 42 {
		errs = append(errs, fieldError{Field: "toAddress", Message: "Valid wallet address is required"})
	}
	if req.Amount.LessThan(minWithdrawal) {
		errs = append(errs, fieldError{Field: "amount", Message: "Amount must be greater than 0"})
	}
	return errs
}

// withdraw sends tokens out of the caller's custodial wallet, signed with its own
// decrypted key.
func (s *server) withdraw(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.custodialWallet(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if errs := validateWithdrawal(req); len(errs) > 0 {
		writeError(w, http.StatusBadRequest, "Validation failed", errs)
		return
	}
	if s.Encryption == nil || s.Signers == nil {
		writeError(w, http.StatusServiceUnavailable, "Custodial wallets are not configured", nil)
		return
	}

	key, err := s.Encryption.DecryptPrivateKey(wallet.EncryptedPrivateKey)
	if err != nil {
		log.Printf("Error decrypting custodial key for %s: %v", wallet.Address, err)
		writeError(w, http.StatusInternalServerError, "Withdrawal failed", "custodial key could not be decrypted")
		return
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(key.PublicKey).Hex(), wallet.Address) {
		log.Printf("Custodial key does not match wallet %s", wallet.Address)
		writeError(w, http.StatusInternalServerError, "Withdrawal failed", "custodial key does not match wallet")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.App.Server.SingleRequestTimeout)
	defer cancel()

	service := services.NewDistributionService(s.Signers.ForKey(key), s.App, s.Metrics)
	record, err := service.Distribute(ctx, strings.TrimSpace(req.ToAddress), req.Amount, map[string]string{
		"type":   "withdrawal",
		"wallet": wallet.Address,
		"userId": wallet.UserId,
	})
	if err != nil {
		var balanceErr *services.InsufficientBalanceError
		switch {
		case errors.As(err, &balanceErr):
			writeError(w, http.StatusBadRequest, "Insufficient balance", map[string]string{
				"required":  balanceErr.Required.String(),
				"available": balanceErr.Available.String(),
			})
		case services.ErrorKind(err) == services.KindTimeout:
			writeJSON(w, http.StatusGatewayTimeout, response{
				Success: false,
				Error:   "Request timeout",
				Message: timeoutMessage,
				Details: err.Error(),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, response{
				Success:   false,
				Error:     "Withdrawal failed",
				Details:   err.Error(),
				ErrorKind: services.ErrorKind(err),
			})
		}
		return
	}
	writeSuccess(w, "Tokens withdrawn successfully", record)
}
