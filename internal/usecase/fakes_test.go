package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"remittance-service/internal/chains"
	"remittance-service/internal/domain"
	"remittance-service/internal/lock"
	"remittance-service/internal/provider"
	"remittance-service/internal/rates"
	"remittance-service/internal/security"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ---- repositories ----

type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	txs         map[int64]*domain.Transaction
	rems        map[int64]*domain.Remittance
	wallets     map[string]*domain.Wallet
	recipients  map[int64]*domain.Recipient
	createErr   error
	settleCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		txs:        make(map[int64]*domain.Transaction),
		rems:       make(map[int64]*domain.Remittance),
		wallets:    make(map[string]*domain.Wallet),
		recipients: make(map[int64]*domain.Recipient),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func copyTx(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	c.Metadata = make(map[string]interface{}, len(tx.Metadata))
	for k, v := range tx.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func copyRem(rem *domain.Remittance) *domain.Remittance {
	c := *rem
	return &c
}

// txRepo

type fakeTxRepo struct{ s *fakeStore }

func (r fakeTxRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.CreateWithRemittance(ctx, tx, nil)
}

func (r fakeTxRepo) GetByID(_ context.Context, id int64) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.txs[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "transaction", Key: fmt.Sprint(id)}
	}
	return copyTx(tx), nil
}

func (r fakeTxRepo) GetByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tx := range r.s.txs {
		if tx.Reference == reference {
			return copyTx(tx), nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "transaction", Key: reference}
}

func (r fakeTxRepo) GetByProviderReference(_ context.Context, provider, providerRef string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tx := range r.s.txs {
		if tx.Provider != nil && tx.ProviderReference != nil && *tx.Provider == provider && *tx.ProviderReference == providerRef {
			return copyTx(tx), nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "transaction", Key: provider + "/" + providerRef}
}

func (r fakeTxRepo) ListOpenOlderThan(context.Context, time.Duration, int) ([]*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.s.txs {
		if !tx.Status.IsTerminal() {
			out = append(out, copyTx(tx))
		}
	}
	return out, nil
}

func (r fakeTxRepo) AttachHash(ctx context.Context, id int64, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx, ok := r.s.txs[id]; ok && tx.TxHash == nil {
		tx.TxHash = &hash
	}
	return nil
}

func (r fakeTxRepo) AttachProviderReference(_ context.Context, id int64, provider, providerRef string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx, ok := r.s.txs[id]; ok {
		tx.Provider = &provider
		tx.ProviderReference = &providerRef
	}
	return nil
}

func (s *fakeStore) applyTx(id int64, upd *domain.StatusUpdate) bool {
	tx, ok := s.txs[id]
	if !ok || !tx.Status.CanTransitionTo(upd.Status) {
		return false
	}
	tx.Status = upd.Status
	if tx.TxHash == nil && upd.TxHash != nil {
		h := *upd.TxHash
		tx.TxHash = &h
	}
	if upd.FailureReason != nil {
		reason := *upd.FailureReason
		tx.FailureReason = &reason
	}
	if tx.Metadata == nil {
		tx.Metadata = map[string]interface{}{}
	}
	for k, v := range upd.Metadata {
		tx.Metadata[k] = v
	}
	tx.UpdatedAt = time.Now()
	return true
}

func (s *fakeStore) applyRem(id int64, upd *domain.StatusUpdate) bool {
	rem, ok := s.rems[id]
	if !ok || !rem.Status.CanTransitionTo(upd.Status) {
		return false
	}
	rem.Status = upd.Status
	if upd.FailureReason != nil {
		reason := *upd.FailureReason
		rem.FailureReason = &reason
	}
	return true
}

func (r fakeTxRepo) UpdateStatus(_ context.Context, id int64, upd *domain.StatusUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.applyTx(id, upd), nil
}

func (r fakeTxRepo) CreateWithRemittance(_ context.Context, tx *domain.Transaction, rem *domain.Remittance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createErr != nil {
		return r.s.createErr
	}
	for _, existing := range r.s.txs {
		if existing.Reference == tx.Reference {
			return fmt.Errorf("duplicate transaction reference %s", tx.Reference)
		}
	}
	tx.ID = r.s.id()
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = tx.CreatedAt
	r.s.txs[tx.ID] = copyTx(tx)
	if rem != nil {
		rem.ID = r.s.id()
		rem.TransactionID = tx.ID
		r.s.rems[rem.ID] = copyRem(rem)
	}
	return nil
}

func (r fakeTxRepo) SettleWithRemittance(_ context.Context, txID int64, upd *domain.StatusUpdate, remittanceID int64, remUpd *domain.StatusUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.applyTx(txID, upd) {
		return false, nil
	}
	r.s.applyRem(remittanceID, remUpd)
	return true, nil
}

func (r fakeTxRepo) SettleDeposit(_ context.Context, txID int64, upd *domain.StatusUpdate, credit decimal.Decimal) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.applyTx(txID, upd) {
		return false, nil
	}
	if upd.Status == domain.StatusCompleted {
		tx := r.s.txs[txID]
		if w, ok := r.s.wallets[tx.UserID]; ok {
			w.CreditedTotal = w.CreditedTotal.Add(credit)
		}
		r.s.settleCalls++
	}
	return true, nil
}

// remRepo

type fakeRemRepo struct{ s *fakeStore }

func (r fakeRemRepo) GetByID(_ context.Context, id int64) (*domain.Remittance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rem, ok := r.s.rems[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "remittance", Key: fmt.Sprint(id)}
	}
	return copyRem(rem), nil
}

func (r fakeRemRepo) GetByTransactionID(_ context.Context, transactionID int64) (*domain.Remittance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rem := range r.s.rems {
		if rem.TransactionID == transactionID {
			return copyRem(rem), nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "remittance", Key: fmt.Sprint(transactionID)}
}

func (r fakeRemRepo) UpdateStatus(_ context.Context, id int64, upd *domain.StatusUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.applyRem(id, upd), nil
}

// walletRepo

type fakeWalletRepo struct{ s *fakeStore }

func (r fakeWalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[w.UserID]; ok {
		return domain.ErrDuplicateWallet
	}
	w.ID = r.s.id()
	w.CreatedAt = time.Now()
	c := *w
	r.s.wallets[w.UserID] = &c
	return nil
}

func (r fakeWalletRepo) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "wallet", Key: userID}
	}
	c := *w
	return &c, nil
}

func (r fakeWalletRepo) GetByAddress(_ context.Context, address string) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.Address == address {
			c := *w
			return &c, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "wallet", Key: address}
}

// recipientRepo

type fakeRecipientRepo struct{ s *fakeStore }

func (r fakeRecipientRepo) Create(_ context.Context, rec *domain.Recipient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec.ID = r.s.id()
	c := *rec
	r.s.recipients[rec.ID] = &c
	return nil
}

func (r fakeRecipientRepo) GetByID(_ context.Context, id int64) (*domain.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.recipients[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "recipient", Key: fmt.Sprint(id)}
	}
	c := *rec
	return &c, nil
}

func (r fakeRecipientRepo) ListByUser(_ context.Context, userID string) ([]*domain.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Recipient
	for _, rec := range r.s.recipients {
		if rec.UserID == userID {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeSettings struct{ cfg domain.PolicyConfig }

func (f fakeSettings) PolicySnapshot(context.Context) (domain.PolicyConfig, error) {
	return f.cfg, nil
}

// ---- ledger ----

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	statuses map[string]domain.LedgerTxStatus
	accounts int
	submits  int
	hashSeq  int

	// submitFn overrides the default balance-moving behaviour
	submitFn func(ctx context.Context, attempt int, req *domain.PaymentRequest) (*domain.PaymentResult, error)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]decimal.Decimal),
		statuses: make(map[string]domain.LedgerTxStatus),
	}
}

func (l *fakeLedger) Name() string             { return "STELLAR" }
func (l *fakeLedger) NativeAsset() string      { return "XLM" }
func (l *fakeLedger) Precision() int32         { return 7 }
func (l *fakeLedger) Reserve() decimal.Decimal { return d("2") }
func (l *fakeLedger) BaseFee() decimal.Decimal { return d("0.00001") }

func (l *fakeLedger) ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "G") || len(address) < 3 {
		return fmt.Errorf("invalid address")
	}
	return nil
}

func (l *fakeLedger) GenerateAccount(context.Context) (*domain.GeneratedAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts++
	return &domain.GeneratedAccount{
		Address: fmt.Sprintf("GUSER%03d", l.accounts),
		Secret:  fmt.Sprintf("SUSER%03d", l.accounts),
	}, nil
}

func (l *fakeLedger) setBalance(address, amount string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] = d(amount)
}

func (l *fakeLedger) balance(address string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address]
}

func (l *fakeLedger) submitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submits
}

func (l *fakeLedger) GetNativeBalance(_ context.Context, address string) (decimal.Decimal, error) {
	return l.balance(address), nil
}

func (l *fakeLedger) SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	l.mu.Lock()
	attempt := l.submits
	l.submits++
	fn := l.submitFn
	l.mu.Unlock()

	if fn != nil {
		return fn(ctx, attempt, req)
	}

	// signing key must match the sealed one
	if req.Secret != "S"+strings.TrimPrefix(req.From, "G") {
		return nil, &domain.LedgerError{Code: "bad_key", Message: "wallet key does not match source address"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	spend := req.Amount.Add(l.BaseFee())
	if l.balances[req.From].Sub(spend).LessThan(l.Reserve()) {
		return &domain.PaymentResult{ResultCode: "op_underfunded"}, &domain.LedgerError{Code: "op_underfunded", Message: "insufficient balance"}
	}
	l.balances[req.From] = l.balances[req.From].Sub(spend)
	l.balances[req.To] = l.balances[req.To].Add(req.Amount)
	l.hashSeq++
	hash := fmt.Sprintf("hash%04d", l.hashSeq)
	l.statuses[hash] = domain.LedgerTxCompleted
	return &domain.PaymentResult{Hash: hash, Success: true, ResultCode: "tx_success"}, nil
}

func (l *fakeLedger) GetTransactionStatus(_ context.Context, hash string) (domain.LedgerTxStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.statuses[hash]; ok {
		return s, nil
	}
	return domain.LedgerTxUnknown, nil
}

// ---- collaborators ----

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) CreateTransaction(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*domain.ProviderResponse)
	return resp, args.Error(1)
}

func (m *mockProvider) VerifyTransaction(ctx context.Context, providerRef string) (domain.WebhookOutcome, error) {
	args := m.Called(ctx, providerRef)
	return args.Get(0).(domain.WebhookOutcome), args.Error(1)
}

func (m *mockProvider) ParseWebhook(headers http.Header, body []byte) (*domain.WebhookEvent, error) {
	args := m.Called(headers, body)
	ev, _ := args.Get(0).(*domain.WebhookEvent)
	return ev, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyPayoutReady(ctx context.Context, payout *domain.PayoutReady) error {
	return m.Called(ctx, payout).Error(0)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []*domain.TransactionEvent
}

func (r *recordingEvents) PublishTransactionEvent(_ context.Context, ev *domain.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingScheduler) Schedule(ctx context.Context, id int64, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func (r *recordingScheduler) scheduled() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}

// ---- harness ----

const custodyAddress = "GCUSTODY"

type harness struct {
	store     *fakeStore
	ledger    *fakeLedger
	events    *recordingEvents
	scheduler *recordingScheduler
	notifier  *mockNotifier
	cipher    *security.KeyCipher
	ledgers   *chains.Registry
	providers *provider.Registry
	wallets   *WalletUsecase
	transfers *TransferUsecase
	reconcile *ReconcileUsecase
	webhooks  *WebhookUsecase
}

func testPolicy() domain.PolicyConfig {
	return domain.PolicyConfig{
		ServiceFeeRate: d("0.025"),
		FixedFeeUSD:    d("2"),
		NetworkFee:     d("0.00001"),
		MinUSD:         d("20"),
		MaxUSD:         d("5000"),
	}
}

func testRates(t *testing.T) rates.Provider {
	t.Helper()
	table, err := rates.NewTable(map[string]decimal.Decimal{
		"NGN": d("1550"),
		"KES": d("129.35"),
		"XLM": d("4"),
	}, time.Now(), "test")
	require.NoError(t, err)
	return rates.NewStaticProvider(table)
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	payoutRail    provider.PaymentProvider
	providers     []provider.PaymentProvider
	submitTimeout time.Duration
}

func withPayoutRail(p provider.PaymentProvider) harnessOption {
	return func(o *harnessOptions) { o.payoutRail = p }
}

func withProviders(ps ...provider.PaymentProvider) harnessOption {
	return func(o *harnessOptions) { o.providers = ps }
}

func withSubmitTimeout(d time.Duration) harnessOption {
	return func(o *harnessOptions) { o.submitTimeout = d }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	o := harnessOptions{submitTimeout: time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	logger := zap.NewNop()
	key, err := security.GenerateMasterKey()
	require.NoError(t, err)
	cipher, err := security.NewKeyCipher(key, "")
	require.NoError(t, err)

	custodySecret, err := cipher.Seal("SCUSTODY", custodyAddress)
	require.NoError(t, err)

	h := &harness{
		store:     newFakeStore(),
		ledger:    newFakeLedger(),
		events:    &recordingEvents{},
		scheduler: &recordingScheduler{},
		notifier:  &mockNotifier{},
		cipher:    cipher,
		ledgers:   chains.NewRegistry(),
		providers: provider.NewRegistry(o.providers...),
	}
	h.ledgers.Register(h.ledger)
	h.notifier.On("NotifyPayoutReady", mock.Anything, mock.Anything).Return(nil).Maybe()

	txRepo := fakeTxRepo{h.store}
	remRepo := fakeRemRepo{h.store}

	h.wallets = NewWalletUsecase(fakeWalletRepo{h.store}, h.ledgers, "STELLAR", cipher,
		CustodyAccount{Address: custodyAddress, EncryptedSecret: custodySecret}, logger)

	h.transfers = NewTransferUsecase(
		txRepo, remRepo, fakeRecipientRepo{h.store}, fakeSettings{testPolicy()},
		testRates(t), h.ledgers, h.wallets, NewBalanceGuard(h.ledgers, logger),
		lock.NewLocalLocker(5*time.Second), h.scheduler, h.events, h.notifier, o.payoutRail,
		TransferConfig{
			SettlementLedger: "STELLAR",
			SubmitTimeout:    o.submitTimeout,
			ReconcileDelay:   5 * time.Minute,
		},
		logger,
	)
	h.reconcile = NewReconcileUsecase(txRepo, remRepo, h.ledgers, h.providers, h.events, h.notifier, logger)
	h.webhooks = NewWebhookUsecase(txRepo, remRepo, h.providers, h.events, h.notifier, logger)
	return h
}

// fundedWallet creates the user's wallet and sets its ledger balance
func (h *harness) fundedWallet(t *testing.T, userID, balance string) *domain.Wallet {
	t.Helper()
	w, err := h.wallets.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	h.ledger.setBalance(w.Address, balance)
	return w
}

func (h *harness) tx(t *testing.T, id int64) *domain.Transaction {
	t.Helper()
	tx, err := fakeTxRepo{h.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func (h *harness) rem(t *testing.T, id int64) *domain.Remittance {
	t.Helper()
	rem, err := fakeRemRepo{h.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return rem
}

func (h *harness) txCount() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.txs)
}
