// internal/chains/stellar/stellar.go
package stellar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"go.uber.org/zap"
)

const (
	LedgerName  = "STELLAR"
	NativeAsset = "XLM"
	precision   = 7
	memoMaxLen  = 28
)

var stroopsPerLumen = decimal.NewFromInt(10_000_000)

type Config struct {
	HorizonURL        string
	NetworkPassphrase string
	Reserve           decimal.Decimal
	BaseFee           decimal.Decimal
	TxTimeout         time.Duration
	Friendbot         bool
	Read              chains.ReadPolicy
}

// StellarLedger talks to Horizon. Submissions are never retried here.
type StellarLedger struct {
	horizon horizonclient.ClientInterface
	cfg     Config
	logger  *zap.Logger
}

func NewStellarLedger(cfg Config, logger *zap.Logger) *StellarLedger {
	client := &horizonclient.Client{
		HorizonURL: cfg.HorizonURL,
		HTTP:       &http.Client{Timeout: 60 * time.Second},
	}
	return NewStellarLedgerWithClient(client, cfg, logger)
}

// NewStellarLedgerWithClient lets callers supply the Horizon client
func NewStellarLedgerWithClient(client horizonclient.ClientInterface, cfg Config, logger *zap.Logger) *StellarLedger {
	if cfg.Reserve.IsZero() {
		cfg.Reserve = decimal.NewFromInt(2)
	}
	if cfg.BaseFee.IsZero() {
		cfg.BaseFee = decimal.New(1, -5) // 100 stroops
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = 5 * time.Minute
	}

	logger.Info("Stellar ledger initialized",
		zap.String("horizon", cfg.HorizonURL),
		zap.String("passphrase", cfg.NetworkPassphrase),
		zap.String("reserve", cfg.Reserve.String()))

	return &StellarLedger{
		horizon: client,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *StellarLedger) Name() string { return LedgerName }

func (s *StellarLedger) NativeAsset() string { return NativeAsset }

func (s *StellarLedger) Precision() int32 { return precision }

func (s *StellarLedger) Reserve() decimal.Decimal { return s.cfg.Reserve }

func (s *StellarLedger) BaseFee() decimal.Decimal { return s.cfg.BaseFee }

// ValidateAddress accepts G... account ids only
func (s *StellarLedger) ValidateAddress(address string) error {
	if !strkey.IsValidEd25519PublicKey(address) {
		return fmt.Errorf("invalid Stellar address")
	}
	return nil
}

// GenerateAccount creates a random keypair. On testnet the account may be
// funded through friendbot; a funding failure is only logged.
func (s *StellarLedger) GenerateAccount(ctx context.Context) (*domain.GeneratedAccount, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}

	if s.cfg.Friendbot {
		if _, err := s.horizon.Fund(kp.Address()); err != nil {
			s.logger.Warn("friendbot funding failed",
				zap.String("address", kp.Address()),
				zap.Error(err))
		}
	}

	return &domain.GeneratedAccount{
		Address: kp.Address(),
		Secret:  kp.Seed(),
	}, nil
}

// GetNativeBalance reads the live XLM balance. An account that does not
// exist on the ledger yet has a zero balance.
func (s *StellarLedger) GetNativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var account hProtocol.Account
	err := chains.Read(ctx, s.cfg.Read, s.logger, "account_detail", horizonclient.IsNotFoundError, func() error {
		var err error
		account, err = s.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: address})
		return err
	})
	if horizonclient.IsNotFoundError(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load account %s: %w", address, err)
	}

	raw, err := account.GetNativeBalance()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read native balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", raw, err)
	}
	return balance, nil
}

// SubmitPayment loads the sender's sequence, builds a single payment
// operation, signs and submits it. The hash is computed before submission
// and returned even when the outcome is ambiguous.
func (s *StellarLedger) SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	kp, err := keypair.ParseFull(req.Secret)
	if err != nil {
		return nil, &domain.LedgerError{Code: "bad_key", Message: "wallet key could not be parsed"}
	}
	if kp.Address() != req.From {
		return nil, &domain.LedgerError{Code: "bad_key", Message: "wallet key does not match source address"}
	}
	if err := s.ValidateAddress(req.To); err != nil {
		return nil, &domain.LedgerError{Code: "op_malformed", Message: "destination is not a valid account"}
	}

	var account hProtocol.Account
	err = chains.Read(ctx, s.cfg.Read, s.logger, "account_detail", horizonclient.IsNotFoundError, func() error {
		var err error
		account, err = s.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: req.From})
		return err
	})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return nil, &domain.LedgerError{Code: "tx_no_source_account", Message: describeCode("tx_no_source_account")}
		}
		return nil, &domain.LedgerError{Code: "account_unavailable", Message: describeCode("account_unavailable"), Detail: err.Error()}
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		BaseFee:              s.cfg.BaseFee.Mul(stroopsPerLumen).IntPart(),
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(int64(s.cfg.TxTimeout.Seconds())),
		},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: req.To,
				Amount:      req.Amount.StringFixed(precision),
				Asset:       txnbuild.NativeAsset{},
			},
		},
	}
	if req.Memo != "" {
		memo := req.Memo
		if len(memo) > memoMaxLen {
			memo = memo[len(memo)-memoMaxLen:]
		}
		params.Memo = txnbuild.MemoText(memo)
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return nil, &domain.LedgerError{Code: "build_failed", Message: describeCode("build_failed"), Detail: err.Error()}
	}
	tx, err = tx.Sign(s.cfg.NetworkPassphrase, kp)
	if err != nil {
		return nil, &domain.LedgerError{Code: "sign_failed", Message: describeCode("sign_failed"), Detail: err.Error()}
	}
	hash, err := tx.HashHex(s.cfg.NetworkPassphrase)
	if err != nil {
		return nil, &domain.LedgerError{Code: "sign_failed", Message: describeCode("sign_failed"), Detail: err.Error()}
	}

	s.logger.Info("submitting Stellar payment",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.String("amount", req.Amount.String()),
		zap.String("tx_hash", hash))

	type outcome struct {
		resp hProtocol.Transaction
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := s.horizon.SubmitTransaction(tx)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		// the broadcast cannot be recalled; the late result is only logged
		go func() {
			o := <-done
			s.logger.Info("late Stellar submission result",
				zap.String("tx_hash", hash),
				zap.Bool("successful", o.err == nil && o.resp.Successful),
				zap.Error(o.err))
		}()
		return &domain.PaymentResult{Hash: hash}, &domain.LedgerError{
			Code:      "timeout",
			Message:   "no definitive result before local deadline",
			Hash:      hash,
			Ambiguous: true,
		}
	case o := <-done:
		if o.err != nil {
			lerr := classifySubmitError(o.err, hash)
			s.logger.Warn("Stellar submission rejected",
				zap.String("tx_hash", hash),
				zap.String("code", lerr.Code),
				zap.Bool("ambiguous", lerr.Ambiguous),
				zap.Error(o.err))
			return &domain.PaymentResult{Hash: hash, ResultCode: lerr.Code}, lerr
		}
		if !o.resp.Successful {
			return &domain.PaymentResult{Hash: o.resp.Hash, ResultCode: "tx_failed"}, &domain.LedgerError{
				Code:    "tx_failed",
				Message: describeCode("tx_failed"),
				Hash:    o.resp.Hash,
			}
		}

		s.logger.Info("Stellar payment applied",
			zap.String("tx_hash", o.resp.Hash),
			zap.Int32("ledger", o.resp.Ledger))

		return &domain.PaymentResult{Hash: o.resp.Hash, Success: true, ResultCode: "tx_success"}, nil
	}
}

// GetTransactionStatus maps Horizon's view of a hash. A hash Horizon does
// not know yet is unknown, never failed.
func (s *StellarLedger) GetTransactionStatus(ctx context.Context, hash string) (domain.LedgerTxStatus, error) {
	var tx hProtocol.Transaction
	err := chains.Read(ctx, s.cfg.Read, s.logger, "transaction_detail", horizonclient.IsNotFoundError, func() error {
		var err error
		tx, err = s.horizon.TransactionDetail(hash)
		return err
	})
	if horizonclient.IsNotFoundError(err) {
		return domain.LedgerTxUnknown, nil
	}
	if err != nil {
		return domain.LedgerTxUnknown, fmt.Errorf("failed to query transaction %s: %w", hash, err)
	}
	if tx.Successful {
		return domain.LedgerTxCompleted, nil
	}
	return domain.LedgerTxFailed, nil
}
