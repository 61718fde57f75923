// internal/handler/transfer_handler.go
package handler

import (
	"context"
	"net/http"

	"remittance-service/internal/domain"
	"remittance-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TransferService interface {
	QuoteTransfer(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.Quote, error)
	InitiateTransfer(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.TransferResult, error)
	GetTransfer(ctx context.Context, userID, reference string) (*usecase.TransferDetails, error)
}

type TransferHandler struct {
	transfers TransferService
	logger    *zap.Logger
}

func NewTransferHandler(transfers TransferService, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		logger:    logger,
	}
}

// Quote prices a transfer without moving anything
func (h *TransferHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := h.transfers.QuoteTransfer(r.Context(), UserIDFromContext(r.Context()), &req)
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}
	sendSuccess(w, r, http.StatusOK, "quote generated", q)
}

// Initiate runs a transfer. A failure after submission is still a 200 whose
// status is failed; pending means reconciliation will finish it.
func (h *TransferHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req domain.TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to decode transfer request", zap.String("user_id", userID), zap.Error(err))
		sendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.transfers.InitiateTransfer(r.Context(), userID, &req)
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}

	code := http.StatusOK
	if result.Status == domain.StatusPending {
		code = http.StatusAccepted
	}
	sendSuccess(w, r, code, result.Message, result)
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	details, err := h.transfers.GetTransfer(r.Context(), UserIDFromContext(r.Context()), reference)
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}
	sendSuccess(w, r, http.StatusOK, "transfer retrieved", transferView(details))
}

func transferView(details *usecase.TransferDetails) map[string]interface{} {
	tx := details.Transaction
	view := map[string]interface{}{
		"transaction_id":    tx.ID,
		"reference":         tx.Reference,
		"type":              tx.Type,
		"status":            tx.Status,
		"amount":            tx.Amount,
		"currency":          tx.Currency,
		"settlement_amount": tx.SettlementAmount,
		"ledger":            tx.Ledger,
		"service_fee":       tx.ServiceFee,
		"network_fee":       tx.NetworkFee,
		"total_fee":         tx.TotalFee,
		"to_address":        tx.ToAddress,
		"created_at":        tx.CreatedAt,
		"updated_at":        tx.UpdatedAt,
	}
	if tx.TxHash != nil {
		view["tx_hash"] = *tx.TxHash
	}
	if tx.FailureReason != nil {
		view["failure_reason"] = *tx.FailureReason
	}
	if rem := details.Remittance; rem != nil {
		view["remittance"] = map[string]interface{}{
			"remittance_id":  rem.ID,
			"status":         rem.Status,
			"bank_code":      rem.BankCode,
			"account_number": rem.AccountNumber,
			"total_amount":   rem.TotalAmount,
		}
	}
	return view
}
