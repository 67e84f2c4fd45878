package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/observability/metrics"
)

// PaymentLinkService issues at most one payment link per charge.
type PaymentLinkService struct {
	charges billing.ChargeRepository
	gateway billing.PaymentGateway
	cfg     Config
	clock   billing.Clock
	logger  *zap.Logger
	flight  singleflight.Group
}

// NewPaymentLinkService constructs a service.
func NewPaymentLinkService(charges billing.ChargeRepository, gateway billing.PaymentGateway, cfg Config, clock billing.Clock, logger *zap.Logger) (*PaymentLinkService, error) {
	if charges == nil {
		return nil, errors.New("payment link service: nil repository")
	}
	if gateway == nil {
		return nil, errors.New("payment link service: nil gateway")
	}
	if cfg.LinkBatchConcurrency <= 0 {
		cfg.LinkBatchConcurrency = 1
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentLinkService{charges: charges, gateway: gateway, cfg: cfg, clock: clock, logger: logger}, nil
}

// LinkResult is the link of one charge.
type LinkResult struct {
	Ref    billing.ChargeRef
	Link   string
	Minted bool
}

// Issue returns the stored link of a charge or mints one. Requests for the
// same charge in this process share one claim; the repository claim keeps
// separate processes from storing two links. The shared claim does not
// inherit the cancellation of whichever caller started it, and each caller
// still returns early when its own context ends. Failures are not cached.
func (s *PaymentLinkService) Issue(ctx context.Context, ref billing.ChargeRef) (res LinkResult, err error) {
	start := time.Now()
	defer func() {
		result := metrics.LinkResultReused
		switch {
		case err != nil:
			result = metrics.ResultError
		case res.Minted:
			result = metrics.LinkResultMinted
		}
		metrics.ObservePaymentLink(result, time.Since(start))
	}()

	if _, err := billing.ParseChargeKind(string(ref.Kind)); err != nil {
		return LinkResult{}, err
	}
	if ref.ID <= 0 {
		return LinkResult{}, billing.Validationf("charge id required")
	}

	claimCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(ref.String(), func() (any, error) {
		link, minted, err := s.charges.ClaimPaymentLink(claimCtx, ref, s.mint)
		if err != nil {
			return nil, err
		}
		return LinkResult{Ref: ref, Link: link, Minted: minted}, nil
	})
	select {
	case <-ctx.Done():
		return LinkResult{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return LinkResult{}, out.Err
		}
		return out.Val.(LinkResult), nil
	}
}

func (s *PaymentLinkService) mint(ctx context.Context, charge billing.Charge) (string, error) {
	if charge.Settled() {
		return "", billing.Conflictf("charge %s has nothing outstanding", charge.Ref())
	}
	req := billing.LinkRequest{
		Ref:           charge.Ref(),
		ReferenceCode: charge.ReferenceCode,
		MemberID:      charge.MemberID,
		Title:         chargeTitle(charge),
		Amount:        charge.Outstanding(),
		Currency:      s.cfg.Currency,
		BackURL:       s.cfg.PaymentBackURL,
	}
	if s.cfg.LinkExpiry > 0 {
		req.ExpiresAt = s.clock.Now().Add(s.cfg.LinkExpiry)
	}
	link, err := s.gateway.CreateLink(ctx, req)
	if err == nil && link == "" {
		err = errors.New("empty link")
	}
	if err != nil {
		s.logger.Warn("payment link mint failed",
			zap.String("kind", string(charge.Kind)),
			zap.Int64("charge_id", charge.ID),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", billing.ErrUpstream, err)
	}
	s.logger.Info("payment link minted",
		zap.String("kind", string(charge.Kind)),
		zap.Int64("charge_id", charge.ID))
	return link, nil
}

func chargeTitle(c billing.Charge) string {
	if c.Description != "" {
		return c.Description
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Period)
}

// BulkError is one charge that could not get a link.
type BulkError struct {
	Ref   billing.ChargeRef
	Error string
}

// BulkResult is the outcome of IssueBulk.
type BulkResult struct {
	Period billing.Period
	Links  []LinkResult
	Errors []BulkError
}

// IssueBulk issues links for every pending due of period with bounded
// concurrency. Per-charge failures are collected, not fatal.
func (s *PaymentLinkService) IssueBulk(ctx context.Context, period billing.Period) (BulkResult, error) {
	if period.IsZero() {
		return BulkResult{}, billing.Validationf("period required")
	}
	pending, err := s.charges.ListPendingCharges(ctx, billing.KindDue, period)
	if err != nil {
		return BulkResult{}, err
	}

	result := BulkResult{Period: period}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.LinkBatchConcurrency)
	for _, charge := range pending {
		ref := charge.Ref()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Issue(gctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, BulkError{Ref: ref, Error: err.Error()})
				return nil
			}
			result.Links = append(result.Links, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	sort.Slice(result.Links, func(i, j int) bool { return result.Links[i].Ref.ID < result.Links[j].Ref.ID })
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Ref.ID < result.Errors[j].Ref.ID })
	return result, nil
}
