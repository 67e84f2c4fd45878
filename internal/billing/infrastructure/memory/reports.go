package memory

import (
	"context"

	billing "club-ledger/internal/billing/domain"
)

// Delinquency computes the arrears report.
func (s *Store) Delinquency(ctx context.Context, filter billing.DelinquencyFilter) (billing.DelinquencyPage, error) {
	members, err := s.ListMembers(ctx, false)
	if err != nil {
		return billing.DelinquencyPage{}, err
	}
	s.mu.RLock()
	charges := s.allCharges()
	s.mu.RUnlock()
	return billing.BuildDelinquency(members, charges, filter), nil
}

// MemberDelinquency returns a member's charges matching the filter.
func (s *Store) MemberDelinquency(ctx context.Context, memberID int64, filter billing.DelinquencyFilter) ([]billing.Charge, error) {
	charges, err := s.ListMemberCharges(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return billing.MemberCharges(charges, memberID, filter), nil
}

// Consolidated computes the consolidated report.
func (s *Store) Consolidated(ctx context.Context, filter billing.ConsolidatedFilter) (billing.ConsolidatedReport, error) {
	members, err := s.ListMembers(ctx, false)
	if err != nil {
		return billing.ConsolidatedReport{}, err
	}
	methods, err := s.ListPaymentMethods(ctx)
	if err != nil {
		return billing.ConsolidatedReport{}, err
	}
	s.mu.RLock()
	charges := s.allCharges()
	s.mu.RUnlock()
	return billing.BuildConsolidated(members, methods, charges, filter), nil
}
