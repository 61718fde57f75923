// internal/usecase/recipient_uc.go
package usecase

import (
	"context"
	"strings"

	"remittance-service/internal/domain"
	"remittance-service/internal/repository"
)

type RecipientUsecase struct {
	repo repository.RecipientRepository
}

func NewRecipientUsecase(repo repository.RecipientRepository) *RecipientUsecase {
	return &RecipientUsecase{repo: repo}
}

func (uc *RecipientUsecase) Create(ctx context.Context, userID string, req *domain.RecipientRequest) (*domain.Recipient, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec := &domain.Recipient{
		UserID:        userID,
		Name:          strings.TrimSpace(req.Name),
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		Currency:      req.Currency,
	}
	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (uc *RecipientUsecase) List(ctx context.Context, userID string) ([]*domain.Recipient, error) {
	return uc.repo.ListByUser(ctx, userID)
}
