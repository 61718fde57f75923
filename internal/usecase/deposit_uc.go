// internal/usecase/deposit_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"
	"remittance-service/internal/pricing"
	"remittance-service/internal/provider"
	"remittance-service/internal/rates"
	"remittance-service/internal/repository"

	"go.uber.org/zap"
)

// DepositResult tells the caller where to complete the purchase
type DepositResult struct {
	TransactionID int64                    `json:"transaction_id"`
	Reference     string                   `json:"reference"`
	Status        domain.TransactionStatus `json:"status"`
	RedirectURL   string                   `json:"redirect_url,omitempty"`
	Message       string                   `json:"message"`
}

type DepositConfig struct {
	SettlementLedger string
	// WebhookBaseURL is the webhook route prefix; the provider name is appended
	WebhookBaseURL   string
	ReconcileDelay   time.Duration
}

// DepositUsecase funds a wallet through an on-ramp provider. The provider's
// webhook (or reconciliation) completes the pending deposit later.
type DepositUsecase struct {
	txRepo    repository.TransactionRepository
	wallets   *WalletUsecase
	ledgers   *chains.Registry
	rates     rates.Provider
	providers *provider.Registry
	scheduler Scheduler
	settle    *settler
	cfg       DepositConfig
	logger    *zap.Logger
}

func NewDepositUsecase(
	txRepo repository.TransactionRepository,
	remRepo repository.RemittanceRepository,
	wallets *WalletUsecase,
	ledgers *chains.Registry,
	rateProvider rates.Provider,
	providers *provider.Registry,
	scheduler Scheduler,
	events EventPublisher,
	cfg DepositConfig,
	logger *zap.Logger,
) *DepositUsecase {
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = 30 * time.Minute
	}
	return &DepositUsecase{
		txRepo:    txRepo,
		wallets:   wallets,
		ledgers:   ledgers,
		rates:     rateProvider,
		providers: providers,
		scheduler: scheduler,
		settle: &settler{
			txRepo:  txRepo,
			remRepo: remRepo,
			events:  events,
			logger:  logger,
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (uc *DepositUsecase) CreateDeposit(ctx context.Context, userID string, req *domain.DepositRequest) (*DepositResult, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := uc.providers.Get(req.Provider)
	if err != nil {
		return nil, &domain.ValidationError{Field: "provider", Message: "is not supported"}
	}

	wallet, err := uc.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	ledger, err := uc.ledgers.Get(uc.cfg.SettlementLedger)
	if err != nil {
		return nil, err
	}

	table, err := uc.rates.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	conv := pricing.NewConverter(table, ledger.NativeAsset(), ledger.Precision())
	settlementAmount, err := conv.ToSettlementAsset(req.Amount, req.Currency)
	if err != nil {
		uc.logger.Error("rate table has no entry for deposit currency", zap.String("currency", req.Currency))
		return nil, err
	}

	providerName := p.Name()
	tx := &domain.Transaction{
		UserID:           userID,
		Type:             domain.TransactionTypeDeposit,
		Amount:           req.Amount,
		Currency:         req.Currency,
		SettlementAmount: settlementAmount,
		Ledger:           ledger.Name(),
		Status:           domain.StatusPending,
		Reference:        NewReference(ReferencePrefixDeposit),
		ToAddress:        wallet.Address,
		Provider:         &providerName,
		Metadata: map[string]interface{}{
			"rates_as_of": table.AsOf(),
		},
	}
	if err := uc.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist deposit: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	log := uc.logger.With(
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference", tx.Reference),
		zap.String("provider", providerName),
	)

	result := &DepositResult{TransactionID: tx.ID, Reference: tx.Reference}

	resp, err := p.CreateTransaction(ctx, &domain.ProviderRequest{
		Reference:     tx.Reference,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Asset:         ledger.NativeAsset(),
		WalletAddress: wallet.Address,
		CallbackURL:   strings.TrimRight(uc.cfg.WebhookBaseURL, "/") + "/" + p.Name(),
	})
	if err != nil || resp == nil || !resp.Success {
		log.Warn("provider rejected deposit", zap.Error(err))
		if _, ferr := uc.settle.fail(ctx, tx, "provider rejected request", nil, "deposit"); ferr != nil {
			log.Error("failed to record deposit failure", zap.Error(ferr))
		}
		result.Status = domain.StatusFailed
		result.Message = fmt.Sprintf("deposit failed, reference #%s", tx.Reference)
		return result, nil
	}

	if err := uc.txRepo.AttachProviderReference(ctx, tx.ID, providerName, resp.Reference); err != nil {
		return nil, err
	}

	if uc.scheduler != nil {
		if err := uc.scheduler.Schedule(ctx, tx.ID, uc.cfg.ReconcileDelay); err != nil {
			log.Error("failed to schedule deposit reconciliation", zap.Error(err))
		}
	}

	log.Info("deposit opened", zap.String("provider_reference", resp.Reference))
	result.Status = domain.StatusPending
	result.RedirectURL = resp.RedirectURL
	result.Message = "complete the payment with " + providerName
	return result, nil
}
