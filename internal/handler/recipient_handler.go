// internal/handler/recipient_handler.go
package handler

import (
	"context"
	"net/http"

	"remittance-service/internal/domain"

	"go.uber.org/zap"
)

type RecipientService interface {
	Create(ctx context.Context, userID string, req *domain.RecipientRequest) (*domain.Recipient, error)
	List(ctx context.Context, userID string) ([]*domain.Recipient, error)
}

type RecipientHandler struct {
	recipients RecipientService
	logger     *zap.Logger
}

func NewRecipientHandler(recipients RecipientService, logger *zap.Logger) *RecipientHandler {
	return &RecipientHandler{recipients: recipients, logger: logger}
}

type recipientView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	Currency      string `json:"currency"`
}

func toRecipientView(rec *domain.Recipient) recipientView {
	return recipientView{
		ID:            rec.ID,
		Name:          rec.Name,
		BankCode:      rec.BankCode,
		AccountNumber: rec.AccountNumber,
		Currency:      rec.Currency,
	}
}

func (h *RecipientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.RecipientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.recipients.Create(r.Context(), UserIDFromContext(r.Context()), &req)
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}
	sendSuccess(w, r, http.StatusCreated, "recipient saved", toRecipientView(rec))
}

func (h *RecipientHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recipients.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		sendDomainError(w, r, h.logger, err)
		return
	}

	views := make([]recipientView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toRecipientView(rec))
	}
	sendSuccess(w, r, http.StatusOK, "recipients retrieved", views)
}
