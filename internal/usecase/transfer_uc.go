// internal/usecase/transfer_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"
	"remittance-service/internal/lock"
	"remittance-service/internal/metrics"
	"remittance-service/internal/pricing"
	"remittance-service/internal/provider"
	"remittance-service/internal/rates"
	"remittance-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransferConfig struct {
	SettlementLedger string

	// SubmitTimeout bounds the local wait for a submission result only
	SubmitTimeout  time.Duration
	ReconcileDelay time.Duration

	// PayoutCallbackURL is handed to the payout provider, when one is configured
	PayoutCallbackURL string
}

type TransferUsecase struct {
	txRepo        repository.TransactionRepository
	remRepo       repository.RemittanceRepository
	recipientRepo repository.RecipientRepository
	settings      repository.SettingsRepository
	rates         rates.Provider
	ledgers       *chains.Registry
	wallets       *WalletUsecase
	guard         *BalanceGuard
	locker        lock.Locker
	scheduler     Scheduler
	payoutRail    provider.PaymentProvider
	settle        *settler
	cfg           TransferConfig
	logger        *zap.Logger
}

func NewTransferUsecase(
	txRepo repository.TransactionRepository,
	remRepo repository.RemittanceRepository,
	recipientRepo repository.RecipientRepository,
	settings repository.SettingsRepository,
	rateProvider rates.Provider,
	ledgers *chains.Registry,
	wallets *WalletUsecase,
	guard *BalanceGuard,
	locker lock.Locker,
	scheduler Scheduler,
	events EventPublisher,
	payouts PayoutNotifier,
	payoutRail provider.PaymentProvider,
	cfg TransferConfig,
	logger *zap.Logger,
) *TransferUsecase {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 60 * time.Second
	}
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = 5 * time.Minute
	}
	return &TransferUsecase{
		txRepo:        txRepo,
		remRepo:       remRepo,
		recipientRepo: recipientRepo,
		settings:      settings,
		rates:         rateProvider,
		ledgers:       ledgers,
		wallets:       wallets,
		guard:         guard,
		locker:        locker,
		scheduler:     scheduler,
		payoutRail:    payoutRail,
		settle: &settler{
			txRepo:  txRepo,
			remRepo: remRepo,
			events:  events,
			payouts: payouts,
			logger:  logger,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// QuoteTransfer runs validation and pricing only. No side effects.
func (uc *TransferUsecase) QuoteTransfer(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.Quote, error) {
	if err := uc.resolveRequest(ctx, userID, req); err != nil {
		return nil, err
	}
	q, _, err := uc.quote(ctx, req.Amount, req.Currency)
	return q, err
}

// InitiateTransfer runs validate -> quote -> lock -> guard -> persist ->
// submit -> settle -> schedule. Errors before persistence are returned;
// failures after it are recorded on the transaction and reported as a
// result with status failed.
func (uc *TransferUsecase) InitiateTransfer(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.TransferResult, error) {
	start := time.Now()
	defer func() {
		metrics.TransferDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	}()

	result, err := uc.initiate(ctx, userID, req)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(string(req.Type), "rejected").Inc()
		return nil, err
	}
	metrics.TransfersTotal.WithLabelValues(string(req.Type), string(result.Status)).Inc()
	return result, nil
}

func (uc *TransferUsecase) initiate(ctx context.Context, userID string, req *domain.TransferRequest) (*domain.TransferResult, error) {
	// received
	if err := uc.resolveRequest(ctx, userID, req); err != nil {
		return nil, err
	}

	// quoted
	q, ledger, err := uc.quote(ctx, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	wallet, err := uc.wallets.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(wallet.Ledger, ledger.Name()) {
		return nil, fmt.Errorf("%w: wallet is on %s, settlement is on %s", domain.ErrLedgerUnsupported, wallet.Ledger, ledger.Name())
	}

	txType := domain.TransactionTypeCryptoTransfer
	destination := req.RecipientAddress
	sendAmount := q.SettlementAmount
	if req.Type == domain.TransferTypeCash {
		custody, err := uc.wallets.Custody()
		if err != nil {
			return nil, err
		}
		txType = domain.TransactionTypeRemittance
		destination = custody.Address
		sendAmount = q.SettlementTotal
	}

	// the lock covers guard, persist and submit so two requests from the
	// same wallet cannot both pass the guard on the same balance
	release, err := uc.locker.Acquire(ctx, wallet.Address)
	if err != nil {
		return nil, err
	}
	defer release()

	// balance_checked
	required := RequiredBalance(ledger, q.SettlementAmount, q.SettlementFee)
	if err := uc.guard.EnsureSufficient(ctx, wallet, required); err != nil {
		return nil, err
	}

	// persisted(pending)
	reference := NewReference(ReferencePrefixTransfer)
	tx := &domain.Transaction{
		UserID:           userID,
		Type:             txType,
		Amount:           req.Amount,
		Currency:         q.Currency,
		SettlementAmount: sendAmount,
		Ledger:           ledger.Name(),
		Status:           domain.StatusPending,
		Reference:        reference,
		FromAddress:      wallet.Address,
		ToAddress:        destination,
		ServiceFee:       q.ServiceFee,
		NetworkFee:       q.NetworkFee,
		TotalFee:         q.TotalFee,
		Metadata: map[string]interface{}{
			"quote": q,
		},
	}

	var rem *domain.Remittance
	if req.Type == domain.TransferTypeCash {
		rem = &domain.Remittance{
			UserID:        userID,
			RecipientID:   req.RecipientID,
			Amount:        req.Amount,
			Currency:      q.Currency,
			Status:        domain.StatusPending,
			Reference:     reference,
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
			Narration:     req.Narration,
			FeeAmount:     q.TotalFee,
			TotalAmount:   q.TotalAmount,
		}
	}

	if err := uc.txRepo.CreateWithRemittance(ctx, tx, rem); err != nil {
		return nil, fmt.Errorf("failed to persist transfer: %w", err)
	}

	// the pending row exists: a cancelled request must not stop the hash
	// write or the reconciliation schedule. submit stays bounded by SubmitTimeout.
	ctx = context.WithoutCancel(ctx)

	log := uc.logger.With(
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference", reference),
		zap.String("type", string(txType)),
	)
	log.Info("transfer persisted",
		zap.String("settlement_amount", sendAmount.String()),
		zap.String("to", destination),
	)

	result := &domain.TransferResult{
		TransactionID: tx.ID,
		Reference:     reference,
	}
	if rem != nil {
		result.RemittanceID = &rem.ID
	}

	// submitted
	secret, err := uc.wallets.Secret(wallet)
	if err != nil {
		log.Error("failed to decrypt wallet key", zap.Error(err))
		uc.recordFailure(ctx, log, tx, "wallet key unavailable", nil)
		return uc.failedResult(result), nil
	}

	res, err := uc.submit(ctx, log, ledger, &domain.PaymentRequest{
		From:   wallet.Address,
		Secret: secret,
		To:     destination,
		Amount: sendAmount,
		Memo:   reference,
	})

	if err == nil && res != nil && res.Success {
		hash := res.Hash
		applied, serr := uc.settle.complete(ctx, tx, &hash, map[string]interface{}{
			"ledger_result_code": res.ResultCode,
		}, "orchestrator")
		if serr != nil || !applied {
			// the ledger moved value; reconciliation repairs the row
			log.Error("failed to record completed transfer", zap.Bool("applied", applied), zap.Error(serr))
			_ = uc.txRepo.AttachHash(ctx, tx.ID, hash)
			uc.scheduleReconcile(ctx, log, tx.ID)
			result.Status = domain.StatusPending
			result.Message = "transfer submitted, awaiting confirmation"
			return result, nil
		}

		uc.scheduleReconcile(ctx, log, tx.ID)
		if rem != nil {
			uc.dispatchPayout(ctx, log, tx, rem)
		}

		log.Info("transfer completed", zap.String("tx_hash", hash))
		result.Status = domain.StatusCompleted
		result.Message = "transfer completed"
		return result, nil
	}

	var lerr *domain.LedgerError
	if err == nil || !errors.As(err, &lerr) || lerr.Ambiguous {
		// no definitive answer (or accepted but not final): the broadcast
		// may still land, so the row stays pending and reconciliation decides
		hash := ""
		if res != nil {
			hash = res.Hash
		}
		if lerr != nil && lerr.Hash != "" {
			hash = lerr.Hash
		}
		if hash != "" {
			if aerr := uc.txRepo.AttachHash(ctx, tx.ID, hash); aerr != nil {
				log.Error("failed to attach hash", zap.Error(aerr))
			}
		}
		log.Warn("submission outcome unknown, awaiting reconciliation",
			zap.String("tx_hash", hash),
			zap.Error(err),
		)
		uc.scheduleReconcile(ctx, log, tx.ID)
		result.Status = domain.StatusPending
		result.Message = "transfer submitted, awaiting confirmation"
		return result, nil
	}

	// definitive ledger rejection
	var hash *string
	if lerr.Hash != "" {
		h := lerr.Hash
		hash = &h
	}
	metadata := map[string]interface{}{
		"ledger_result_code": lerr.Code,
	}
	if lerr.Detail != "" {
		metadata["ledger_detail"] = lerr.Detail
	}
	uc.recordFailure(ctx, log, tx, lerr.Message, metadata)
	if hash != nil {
		if aerr := uc.txRepo.AttachHash(ctx, tx.ID, *hash); aerr != nil {
			log.Error("failed to attach hash", zap.Error(aerr))
		}
	}
	if rem == nil {
		// crypto path: the ledger's finality can lag, so it is re-checked either way
		uc.scheduleReconcile(ctx, log, tx.ID)
	}
	return uc.failedResult(result), nil
}

// submit sends the payment and retries exactly once on a sequence conflict,
// still under the wallet lock. The local timeout never marks a failure.
func (uc *TransferUsecase) submit(ctx context.Context, log *zap.Logger, ledger domain.Ledger, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	for attempt := 0; ; attempt++ {
		submitCtx, cancel := context.WithTimeout(ctx, uc.cfg.SubmitTimeout)
		start := time.Now()
		res, err := ledger.SubmitPayment(submitCtx, req)
		cancel()

		outcome := "success"
		var lerr *domain.LedgerError
		switch {
		case errors.As(err, &lerr) && lerr.Ambiguous:
			outcome = "ambiguous"
		case err != nil:
			outcome = "failed"
		}
		metrics.LedgerSubmitDuration.WithLabelValues(ledger.Name(), outcome).Observe(time.Since(start).Seconds())

		if lerr != nil && lerr.Retryable && attempt == 0 {
			log.Warn("sequence conflict, retrying once with fresh account state",
				zap.String("code", lerr.Code))
			continue
		}
		return res, err
	}
}

func (uc *TransferUsecase) recordFailure(ctx context.Context, log *zap.Logger, tx *domain.Transaction, reason string, metadata map[string]interface{}) {
	applied, err := uc.settle.fail(ctx, tx, reason, metadata, "orchestrator")
	if err != nil {
		log.Error("failed to record transfer failure", zap.Error(err))
		return
	}
	log.Warn("transfer failed", zap.String("reason", reason), zap.Bool("applied", applied))
}

func (uc *TransferUsecase) failedResult(result *domain.TransferResult) *domain.TransferResult {
	result.Status = domain.StatusFailed
	result.Message = fmt.Sprintf("transfer failed, reference #%s", result.Reference)
	return result
}

func (uc *TransferUsecase) scheduleReconcile(ctx context.Context, log *zap.Logger, id int64) {
	if uc.scheduler == nil {
		return
	}
	if err := uc.scheduler.Schedule(ctx, id, uc.cfg.ReconcileDelay); err != nil {
		log.Error("failed to schedule reconciliation", zap.Error(err))
	}
}

// dispatchPayout hands the bank leg to the payout provider when one is
// configured; otherwise operations complete it from the payout-ready event.
func (uc *TransferUsecase) dispatchPayout(ctx context.Context, log *zap.Logger, tx *domain.Transaction, rem *domain.Remittance) {
	if uc.payoutRail == nil {
		return
	}
	resp, err := uc.payoutRail.CreateTransaction(ctx, &domain.ProviderRequest{
		Reference:     rem.Reference,
		Amount:        rem.Amount,
		Currency:      rem.Currency,
		BankCode:      rem.BankCode,
		AccountNumber: rem.AccountNumber,
		CallbackURL:   uc.cfg.PayoutCallbackURL,
	})
	if err != nil || resp == nil || !resp.Success {
		log.Error("payout provider rejected remittance, left for operations",
			zap.String("provider", uc.payoutRail.Name()),
			zap.Error(err),
		)
		return
	}
	if err := uc.txRepo.AttachProviderReference(ctx, tx.ID, uc.payoutRail.Name(), resp.Reference); err != nil {
		log.Error("failed to store payout reference", zap.Error(err))
		return
	}
	log.Info("payout dispatched",
		zap.String("provider", uc.payoutRail.Name()),
		zap.String("provider_reference", resp.Reference),
	)
}

// resolveRequest validates shape and fills bank details from a saved recipient
func (uc *TransferUsecase) resolveRequest(ctx context.Context, userID string, req *domain.TransferRequest) error {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := req.Validate(); err != nil {
		return err
	}

	switch req.Type {
	case domain.TransferTypeCrypto:
		ledger, err := uc.ledgers.Get(uc.cfg.SettlementLedger)
		if err != nil {
			return err
		}
		if err := ledger.ValidateAddress(req.RecipientAddress); err != nil {
			return &domain.ValidationError{Field: "recipient_address", Message: "is not a valid address"}
		}

	case domain.TransferTypeCash:
		if req.RecipientID == nil {
			return nil
		}
		rec, err := uc.recipientRepo.GetByID(ctx, *req.RecipientID)
		if err != nil {
			return err
		}
		if rec.UserID != userID {
			return &domain.NotFoundError{Resource: "recipient", Key: fmt.Sprint(*req.RecipientID)}
		}
		req.BankCode = rec.BankCode
		req.AccountNumber = rec.AccountNumber
	}
	return nil
}

// quote snapshots the policy and rate table for this request only
func (uc *TransferUsecase) quote(ctx context.Context, amount decimal.Decimal, currency string) (*domain.Quote, domain.Ledger, error) {
	ledger, err := uc.ledgers.Get(uc.cfg.SettlementLedger)
	if err != nil {
		return nil, nil, err
	}

	policy, err := uc.settings.PolicySnapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fee policy: %w", err)
	}

	table, err := uc.rates.Current(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rates: %w", err)
	}

	conv := pricing.NewConverter(table, ledger.NativeAsset(), ledger.Precision())
	q, err := pricing.Quote(amount, currency, policy, conv)
	if err != nil {
		var ucErr *domain.UnknownCurrencyError
		if errors.As(err, &ucErr) {
			uc.logger.Error("rate table has no entry for currency",
				zap.String("currency", ucErr.Currency),
				zap.String("rates_source", table.Source()),
			)
		}
		return nil, nil, err
	}
	return q, ledger, nil
}

// TransferDetails is a transaction with its remittance, when it has one
type TransferDetails struct {
	Transaction *domain.Transaction
	Remittance  *domain.Remittance
}

// GetTransfer looks up a transfer owned by userID. Another user's reference
// is reported as not found.
func (uc *TransferUsecase) GetTransfer(ctx context.Context, userID, reference string) (*TransferDetails, error) {
	tx, err := uc.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, &domain.NotFoundError{Resource: "transaction", Key: reference}
	}

	details := &TransferDetails{Transaction: tx}
	if tx.Type == domain.TransactionTypeRemittance {
		rem, err := uc.remRepo.GetByTransactionID(ctx, tx.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		details.Remittance = rem
	}
	return details, nil
}
