package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/billing/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testClock = fixedClock{now: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}

type seqRefs struct{ n atomic.Int64 }

func (r *seqRefs) Next(kind billing.ChargeKind) string {
	return fmt.Sprintf("%s%06d", billing.ReferencePrefix(kind), r.n.Add(1))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustPeriod(t *testing.T, value string) billing.Period {
	t.Helper()
	p, err := billing.ParsePeriod(value)
	if err != nil {
		t.Fatalf("parse period: %v", err)
	}
	return p
}

func newClubStore() *memory.Store {
	store := memory.NewStore()
	store.PutPaymentMethod(billing.PaymentMethod{ID: 1, Name: "cash"})
	store.PutCategory(billing.Category{ID: 1, Name: "menor", Applicability: billing.ApplicabilityMinor, Condition: billing.ConditionActive, Price: dec("1500"), AgeThreshold: 18})
	store.PutCategory(billing.Category{ID: 2, Name: "mayor", Applicability: billing.ApplicabilityAdult, Condition: billing.ConditionActive, Price: dec("2500"), AgeThreshold: 18})
	return store
}

func adult(id int64) billing.Member {
	return billing.Member{
		ID:              id,
		GivenName:       "Daniel",
		Surname:         fmt.Sprintf("Member%02d", id),
		DocumentID:      fmt.Sprintf("30%06d", id),
		State:           billing.MemberStateActive,
		BirthDate:       time.Date(1985, time.July, 1, 0, 0, 0, 0, time.UTC),
		CategoryID:      2,
		PaymentMethodID: 1,
	}
}

func newFeeService(t *testing.T, store *memory.Store, charges billing.ChargeRepository, logger *zap.Logger) *FeeGenerationService {
	t.Helper()
	if charges == nil {
		charges = store
	}
	svc, err := NewFeeGenerationService(store, store, charges, &seqRefs{}, DefaultConfig().Policy(), testClock, logger)
	if err != nil {
		t.Fatalf("new fee service: %v", err)
	}
	return svc
}

func newLedgerService(t *testing.T, store *memory.Store) *LedgerService {
	t.Helper()
	svc, err := NewLedgerService(store, store, &seqRefs{}, testClock, nil)
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}
	return svc
}

// failingCharges fails InsertGenerated after a number of successful inserts.
type failingCharges struct {
	billing.ChargeRepository
	mu        sync.Mutex
	remaining int
}

func (f *failingCharges) InsertGenerated(ctx context.Context, charge billing.Charge) (billing.Charge, bool, error) {
	f.mu.Lock()
	if f.remaining == 0 {
		f.mu.Unlock()
		return billing.Charge{}, false, errors.New("connection reset")
	}
	f.remaining--
	f.mu.Unlock()
	return f.ChargeRepository.InsertGenerated(ctx, charge)
}

// stubGateway counts mint calls and can fail selected charges.
type stubGateway struct {
	calls atomic.Int64
	delay time.Duration
	fail  func(req billing.LinkRequest) error
}

func (g *stubGateway) CreateLink(ctx context.Context, req billing.LinkRequest) (string, error) {
	n := g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.fail != nil {
		if err := g.fail(req); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("https://pay.example/%s/%d?n=%d", req.Ref.Kind, req.Ref.ID, n), nil
}
