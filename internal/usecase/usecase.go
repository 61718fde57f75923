// internal/usecase/usecase.go
package usecase

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"remittance-service/internal/domain"

	"github.com/oklog/ulid/v2"
)

// Scheduler queues a one-shot reconciliation of a transaction
type Scheduler interface {
	Schedule(ctx context.Context, transactionID int64, delay time.Duration) error
}

// EventPublisher fans transaction status changes out to subscribers
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *domain.TransactionEvent) error
}

// PayoutNotifier tells operations a cash payout is ready for the off-chain leg
type PayoutNotifier interface {
	NotifyPayoutReady(ctx context.Context, payout *domain.PayoutReady) error
}

const (
	ReferencePrefixTransfer = "RMT"
	ReferencePrefixDeposit  = "DEP"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewReference returns "<prefix>-<ULID>"; ULIDs sort by creation time.
func NewReference(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return prefix + "-" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
