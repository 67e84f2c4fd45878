package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/observability/metrics"
)

// ReportService serves paginated operational reports.
type ReportService struct {
	members billing.MemberRepository
	reports billing.ReportRepository
}

// NewReportService constructs a service.
func NewReportService(members billing.MemberRepository, reports billing.ReportRepository) (*ReportService, error) {
	if members == nil || reports == nil {
		return nil, errors.New("report service: nil repository")
	}
	return &ReportService{members: members, reports: reports}, nil
}

// SearchMembers pages members matching every query token.
func (s *ReportService) SearchMembers(ctx context.Context, query string, page billing.Pagination) (billing.MemberPage, error) {
	out, err := s.members.SearchMembers(ctx, query, page.Normalize())
	observeReport("members", err)
	return out, err
}

// Delinquency returns a page of members in arrears with totals over all pages.
func (s *ReportService) Delinquency(ctx context.Context, filter billing.DelinquencyFilter) (billing.DelinquencyPage, error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return billing.DelinquencyPage{}, err
	}
	out, err := s.reports.Delinquency(ctx, filter.Normalize())
	observeReport("delinquency", err)
	return out, err
}

// MemberDelinquency is the charge detail behind one delinquency row.
type MemberDelinquency struct {
	Member      billing.MemberSummary
	Charges     []billing.Charge
	Outstanding decimal.Decimal
}

// MemberDetail returns the matching charges of one member.
func (s *ReportService) MemberDetail(ctx context.Context, memberID int64, filter billing.DelinquencyFilter) (MemberDelinquency, error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return MemberDelinquency{}, err
	}
	member, err := s.members.FindMember(ctx, memberID)
	if err != nil {
		return MemberDelinquency{}, err
	}
	if member == nil {
		return MemberDelinquency{}, billing.NotFoundf("member %d", memberID)
	}
	charges, err := s.reports.MemberDelinquency(ctx, memberID, filter.Normalize())
	observeReport("delinquency_detail", err)
	if err != nil {
		return MemberDelinquency{}, err
	}
	out := MemberDelinquency{Member: member.Summary(), Charges: charges, Outstanding: decimal.Zero}
	for _, c := range charges {
		out.Outstanding = out.Outstanding.Add(c.Outstanding())
	}
	return out, nil
}

// Consolidated returns the consolidated arrears report.
func (s *ReportService) Consolidated(ctx context.Context, filter billing.ConsolidatedFilter) (billing.ConsolidatedReport, error) {
	if filter.MinUnpaid < 0 {
		return billing.ConsolidatedReport{}, billing.Validationf("min_unpaid must not be negative")
	}
	out, err := s.reports.Consolidated(ctx, filter)
	observeReport("consolidated", err)
	return out, err
}

func validateRange(from, to billing.Period) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return billing.Validationf("period range %s..%s is empty", from, to)
	}
	return nil
}

func observeReport(report string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.IncReportQuery(report, result)
}
