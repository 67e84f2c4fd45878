package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
	"club-ledger/internal/observability/metrics"
)

// LedgerService builds member statements and records payments and extras.
type LedgerService struct {
	members billing.MemberRepository
	charges billing.ChargeRepository
	refs    billing.ReferenceIssuer
	clock   billing.Clock
	logger  *zap.Logger
}

// NewLedgerService constructs a service.
func NewLedgerService(members billing.MemberRepository, charges billing.ChargeRepository, refs billing.ReferenceIssuer, clock billing.Clock, logger *zap.Logger) (*LedgerService, error) {
	if members == nil || charges == nil {
		return nil, errors.New("ledger service: nil repository")
	}
	if refs == nil {
		return nil, errors.New("ledger service: nil reference issuer")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{members: members, charges: charges, refs: refs, clock: clock, logger: logger}, nil
}

// Ledger returns the statement of one member.
func (s *LedgerService) Ledger(ctx context.Context, memberID int64) (billing.Ledger, error) {
	member, err := s.members.FindMember(ctx, memberID)
	if err != nil {
		return billing.Ledger{}, err
	}
	if member == nil {
		return billing.Ledger{}, billing.NotFoundf("member %d", memberID)
	}
	return s.build(ctx, *member)
}

// LedgerByDocument returns the statement of the member holding documentID.
func (s *LedgerService) LedgerByDocument(ctx context.Context, documentID string) (billing.Ledger, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return billing.Ledger{}, billing.Validationf("document id required")
	}
	member, err := s.members.FindMemberByDocument(ctx, documentID)
	if err != nil {
		return billing.Ledger{}, err
	}
	if member == nil {
		return billing.Ledger{}, billing.NotFoundf("member with document %s", documentID)
	}
	return s.build(ctx, *member)
}

func (s *LedgerService) build(ctx context.Context, member billing.Member) (ledger billing.Ledger, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveLedgerQuery(result, time.Since(start))
	}()

	charges, err := s.charges.ListMemberCharges(ctx, member.ID)
	if err != nil {
		return billing.Ledger{}, err
	}
	payments, err := s.charges.ListMemberPayments(ctx, member.ID)
	if err != nil {
		return billing.Ledger{}, err
	}
	return billing.BuildLedger(member, charges, payments), nil
}

// LookupCharge finds a charge by its barcode reference.
func (s *LedgerService) LookupCharge(ctx context.Context, reference string) (*billing.Charge, *billing.Member, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil, billing.Validationf("reference required")
	}
	charge, err := s.charges.FindChargeByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if charge == nil {
		return nil, nil, billing.NotFoundf("charge with reference %s", reference)
	}
	member, err := s.members.FindMember(ctx, charge.MemberID)
	if err != nil {
		return nil, nil, err
	}
	return charge, member, nil
}

// PaymentInput is a payment as typed by an operator.
type PaymentInput struct {
	Amount string
	Date   time.Time
	Note   string
}

// RecordPayment applies a payment to one charge. The amount must be
// positive and at most the outstanding amount.
func (s *LedgerService) RecordPayment(ctx context.Context, ref billing.ChargeRef, in PaymentInput) (charge billing.Charge, payment billing.Payment, err error) {
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.IncPaymentRecorded(string(ref.Kind), result)
	}()

	if ref.ID <= 0 {
		return charge, payment, billing.Validationf("charge id required")
	}
	amount, err := money.ParseNonNegative(in.Amount)
	if err != nil {
		return charge, payment, billing.AmountError("amount", err)
	}
	if !amount.IsPositive() {
		return charge, payment, billing.Validationf("amount must be positive")
	}
	now := s.clock.Now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	payment = billing.Payment{Kind: ref.Kind, ChargeID: ref.ID, Amount: amount, Date: date, Note: strings.TrimSpace(in.Note)}
	charge, payment, err = s.charges.RecordPayment(ctx, ref, payment, func(current billing.Charge) (billing.Charge, error) {
		return current.ApplyPayment(amount, date)
	})
	if err != nil {
		return charge, payment, err
	}
	s.logger.Info("payment recorded",
		zap.String("charge", ref.String()),
		zap.Int64("member_id", charge.MemberID),
		zap.String("amount", money.Format(amount)),
		zap.String("state", string(charge.State)))
	return charge, payment, nil
}

// ExtraInput is a one-off charge as typed by an operator.
type ExtraInput struct {
	Period      string
	Description string
	Amount      string
}

// AddExtra creates an extra charge for a member.
func (s *LedgerService) AddExtra(ctx context.Context, memberID int64, in ExtraInput) (billing.Charge, error) {
	period, err := billing.ParsePeriod(in.Period)
	if err != nil {
		return billing.Charge{}, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return billing.Charge{}, billing.Validationf("description required")
	}
	amount, err := money.ParseNonNegative(in.Amount)
	if err != nil {
		return billing.Charge{}, billing.AmountError("amount", err)
	}
	if !amount.IsPositive() {
		return billing.Charge{}, billing.Validationf("amount must be positive")
	}
	member, err := s.members.FindMember(ctx, memberID)
	if err != nil {
		return billing.Charge{}, err
	}
	if member == nil {
		return billing.Charge{}, billing.NotFoundf("member %d", memberID)
	}
	return s.charges.InsertExtra(ctx, billing.Charge{
		Kind:          billing.KindExtra,
		MemberID:      member.ID,
		Period:        period,
		Description:   description,
		Amount:        amount,
		Paid:          decimal.Zero,
		State:         billing.StatePending,
		ReferenceCode: s.refs.Next(billing.KindExtra),
		GeneratedAt:   s.clock.Now(),
	})
}
