// internal/handler/wallet_handler.go
package handler

import (
	"context"
	"net/http"

	"remittance-service/internal/domain"
	"remittance-service/internal/usecase"

	"go.uber.org/zap"
)

type WalletService interface {
	View(ctx context.Context, userID string) (*domain.WalletView, error)
}

type DepositService interface {
	CreateDeposit(ctx context.Context, userID string, req *domain.DepositRequest) (*usecase.DepositResult, error)
}

type WalletHandler struct {
	wallets  WalletService
	deposits DepositService
	logger   *zap.Logger
}

func NewWalletHandler(wallets WalletService, deposits DepositService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		wallets:  wallets,
		deposits: deposits,
		logger:   logger,
	}
}

// GetWallet creates the wallet on first access
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	view, err := h.wallets.View(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}
	sendSuccess(w, r, http.StatusOK, "wallet retrieved", view)
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.deposits.CreateDeposit(r.Context(), UserIDFromContext(r.Context()), &req)
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}

	code := http.StatusAccepted
	if result.Status == domain.StatusFailed {
		code = http.StatusOK
	}
	sendSuccess(w, r, code, result.Message, result)
}
