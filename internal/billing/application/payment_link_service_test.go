package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	billing "club-ledger/internal/billing/domain"
)

func newLinkService(t *testing.T, charges billing.ChargeRepository, gateway billing.PaymentGateway) *PaymentLinkService {
	t.Helper()
	svc, err := NewPaymentLinkService(charges, gateway, DefaultConfig(), testClock, nil)
	if err != nil {
		t.Fatalf("new link service: %v", err)
	}
	return svc
}

func TestPaymentLink_ConcurrentIssueMintsOnce(t *testing.T) {
	store := newClubStore()
	store.PutMember(adult(1))
	charge := store.PutCharge(billing.Charge{Kind: billing.KindDue, MemberID: 1, Period: mustPeriod(t, "2025-03"), Amount: dec("2500"), Paid: dec("0")})
	gateway := &stubGateway{delay: 20 * time.Millisecond}
	svc := newLinkService(t, store, gateway)

	const callers = 16
	links := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Issue(context.Background(), charge.Ref())
			links[i], errs[i] = res.Link, err
		}(i)
	}
	wg.Wait()

	for i := range links {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if links[i] != links[0] {
			t.Fatalf("caller %d got a different link: %s vs %s", i, links[i], links[0])
		}
	}
	if gateway.calls.Load() != 1 {
		t.Fatalf("expected exactly one mint, got %d", gateway.calls.Load())
	}

	// Separate service instances share only the store.
	other := newLinkService(t, store, gateway)
	res, err := other.Issue(context.Background(), charge.Ref())
	if err != nil || res.Minted || res.Link != links[0] {
		t.Fatalf("expected stored link reused, got %+v %v", res, err)
	}
}

func TestPaymentLink_FailuresAreNotCached(t *testing.T) {
	store := newClubStore()
	store.PutMember(adult(1))
	charge := store.PutCharge(billing.Charge{Kind: billing.KindExtra, MemberID: 1, Period: mustPeriod(t, "2025-03"), Amount: dec("300"), Paid: dec("0")})
	down := true
	gateway := &stubGateway{fail: func(billing.LinkRequest) error {
		if down {
			return errors.New("gateway 503")
		}
		return nil
	}}
	svc := newLinkService(t, store, gateway)

	if _, err := svc.Issue(context.Background(), charge.Ref()); !errors.Is(err, billing.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	down = false
	res, err := svc.Issue(context.Background(), charge.Ref())
	if err != nil || !res.Minted || res.Link == "" {
		t.Fatalf("expected retry to mint, got %+v %v", res, err)
	}
}

func TestPaymentLink_RejectsSettledAndUnknown(t *testing.T) {
	store := newClubStore()
	store.PutMember(adult(1))
	paid := store.PutCharge(billing.Charge{Kind: billing.KindDue, MemberID: 1, Period: mustPeriod(t, "2025-03"), Amount: dec("100"), Paid: dec("100"), State: billing.StatePaid})
	gateway := &stubGateway{}
	svc := newLinkService(t, store, gateway)

	if _, err := svc.Issue(context.Background(), paid.Ref()); !errors.Is(err, billing.ErrConflict) {
		t.Fatalf("expected conflict for paid charge, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), billing.ChargeRef{Kind: billing.KindDue, ID: 999}); !errors.Is(err, billing.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), billing.ChargeRef{Kind: "bogus", ID: 1}); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gateway.calls.Load() != 0 {
		t.Fatalf("gateway must not be called")
	}
}

func TestPaymentLink_IssueBulk(t *testing.T) {
	store := newClubStore()
	period := mustPeriod(t, "2025-03")
	var refs []billing.ChargeRef
	for id := int64(1); id <= 5; id++ {
		store.PutMember(adult(id))
		c := store.PutCharge(billing.Charge{Kind: billing.KindDue, MemberID: id, Period: period, Amount: dec("2500"), Paid: dec("0")})
		refs = append(refs, c.Ref())
	}
	store.PutCharge(billing.Charge{Kind: billing.KindDue, MemberID: 1, Period: mustPeriod(t, "2025-02"), Amount: dec("2500"), Paid: dec("0")})
	failing := refs[2]
	gateway := &stubGateway{fail: func(req billing.LinkRequest) error {
		if req.Ref == failing {
			return errors.New("rejected")
		}
		return nil
	}}
	svc := newLinkService(t, store, gateway)

	res, err := svc.IssueBulk(context.Background(), period)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(res.Links) != 4 || len(res.Errors) != 1 || res.Errors[0].Ref != failing {
		t.Fatalf("unexpected bulk result %+v", res)
	}
	for i := 1; i < len(res.Links); i++ {
		if res.Links[i-1].Ref.ID > res.Links[i].Ref.ID {
			t.Fatalf("links not ordered by charge id")
		}
	}
	if _, err := svc.IssueBulk(context.Background(), billing.Period{}); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// gatedGateway blocks every mint until release is closed or ctx ends.
type gatedGateway struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int64
}

func (g *gatedGateway) CreateLink(ctx context.Context, req billing.LinkRequest) (string, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return "https://pay.example/gated", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPaymentLink_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newClubStore()
	store.PutMember(adult(1))
	charge := store.PutCharge(billing.Charge{Kind: billing.KindDue, MemberID: 1, Period: mustPeriod(t, "2025-03"), Amount: dec("2500"), Paid: dec("0")})
	gateway := &gatedGateway{entered: make(chan struct{}), release: make(chan struct{})}
	svc := newLinkService(t, store, gateway)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Issue(firstCtx, charge.Ref())
		firstErr <- err
	}()
	<-gateway.entered

	type outcome struct {
		res LinkResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := svc.Issue(context.Background(), charge.Ref())
		second <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to stop with context.Canceled, got %v", err)
	}
	close(gateway.release)

	got := <-second
	if got.err != nil || got.res.Link != "https://pay.example/gated" {
		t.Fatalf("expected the live caller to get the link, got %+v %v", got.res, got.err)
	}
	stored, _ := store.FindCharge(context.Background(), charge.Ref())
	if stored.PaymentLink != "https://pay.example/gated" {
		t.Fatalf("expected the link stored, got %q", stored.PaymentLink)
	}
	if gateway.calls.Load() != 1 {
		t.Fatalf("expected one mint, got %d", gateway.calls.Load())
	}
}
