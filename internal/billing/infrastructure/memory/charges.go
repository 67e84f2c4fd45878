package memory

import (
	"context"
	"sort"
	"sync"

	billing "club-ledger/internal/billing/domain"
)

// FindCharge loads a charge.
func (s *Store) FindCharge(ctx context.Context, ref billing.ChargeRef) (*billing.Charge, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charges[ref]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// FindChargeByReference loads a charge by barcode reference.
func (s *Store) FindChargeByReference(ctx context.Context, code string) (*billing.Charge, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.references[code]
	if !ok {
		return nil, nil
	}
	c := s.charges[ref]
	return &c, nil
}

// ListMemberCharges returns every charge of a member.
func (s *Store) ListMemberCharges(ctx context.Context, memberID int64) ([]billing.Charge, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Charge, 0)
	for _, c := range s.charges {
		if c.MemberID == memberID {
			out = append(out, c)
		}
	}
	sortCharges(out)
	return out, nil
}

// ListMemberPayments returns every payment against a member's charges.
func (s *Store) ListMemberPayments(ctx context.Context, memberID int64) ([]billing.Payment, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Payment, 0)
	for _, p := range s.payments {
		if c, ok := s.charges[billing.ChargeRef{Kind: p.Kind, ID: p.ChargeID}]; ok && c.MemberID == memberID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ExistingCharges returns generated charges of kind for period by slot.
func (s *Store) ExistingCharges(ctx context.Context, kind billing.ChargeKind, period billing.Period) (map[billing.ChargeKey]billing.Charge, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[billing.ChargeKey]billing.Charge{}
	for key, ref := range s.slots {
		if key.Kind == kind && key.Period == period {
			out[key] = s.charges[ref]
		}
	}
	return out, nil
}

// LastDueCategories maps members to the category of their latest due at or before period.
func (s *Store) LastDueCategories(ctx context.Context, period billing.Period) (map[int64]int64, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := map[int64]billing.Charge{}
	for _, c := range s.charges {
		if c.Kind != billing.KindDue || c.CategoryID == 0 || period.Before(c.Period) {
			continue
		}
		prev, ok := latest[c.MemberID]
		if !ok || prev.Period.Before(c.Period) || (prev.Period == c.Period && prev.ID < c.ID) {
			latest[c.MemberID] = c
		}
	}
	out := make(map[int64]int64, len(latest))
	for memberID, c := range latest {
		out[memberID] = c.CategoryID
	}
	return out, nil
}

// InsertGenerated inserts unless the slot is already taken.
func (s *Store) InsertGenerated(ctx context.Context, charge billing.Charge) (billing.Charge, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.slots[charge.Key()]; ok {
		return s.charges[ref], false, nil
	}
	stored, err := s.insertLocked(charge)
	if err != nil {
		return billing.Charge{}, false, err
	}
	s.slots[stored.Key()] = stored.Ref()
	return stored, true, nil
}

// InsertExtra inserts a manual extra charge.
func (s *Store) InsertExtra(ctx context.Context, charge billing.Charge) (billing.Charge, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(charge)
}

// PutCharge stores a charge as given, for fixtures.
func (s *Store) PutCharge(charge billing.Charge) billing.Charge {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, _ := s.insertLocked(charge)
	if stored.Kind != billing.KindExtra {
		s.slots[stored.Key()] = stored.Ref()
	}
	return stored
}

func (s *Store) insertLocked(charge billing.Charge) (billing.Charge, error) {
	if charge.ReferenceCode != "" {
		if _, taken := s.references[charge.ReferenceCode]; taken {
			return billing.Charge{}, billing.Conflictf("reference %s already used", charge.ReferenceCode)
		}
	}
	if charge.ID == 0 {
		s.chargeSeq[charge.Kind]++
		charge.ID = s.chargeSeq[charge.Kind]
	} else if charge.ID > s.chargeSeq[charge.Kind] {
		s.chargeSeq[charge.Kind] = charge.ID
	}
	if charge.State == "" {
		charge.State = billing.StatePending
	}
	s.charges[charge.Ref()] = charge
	if charge.ReferenceCode != "" {
		s.references[charge.ReferenceCode] = charge.Ref()
	}
	return charge, nil
}

// RecordPayment applies and stores a payment atomically.
func (s *Store) RecordPayment(ctx context.Context, ref billing.ChargeRef, payment billing.Payment, apply billing.PaymentApplier) (billing.Charge, billing.Payment, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.charges[ref]
	if !ok {
		return billing.Charge{}, billing.Payment{}, billing.NotFoundf("charge %s", ref)
	}
	updated, err := apply(current)
	if err != nil {
		return current, billing.Payment{}, err
	}
	s.paymentSeq++
	payment.ID = s.paymentSeq
	payment.Kind = ref.Kind
	payment.ChargeID = ref.ID
	s.charges[ref] = updated
	s.payments = append(s.payments, payment)
	return updated, payment, nil
}

// ClaimPaymentLink returns the stored link or mints one under a per-charge lock.
func (s *Store) ClaimPaymentLink(ctx context.Context, ref billing.ChargeRef, mint billing.LinkMinter) (string, bool, error) {
	lock := s.linkLock(ref)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.charges[ref]
	s.mu.RUnlock()
	if !ok {
		return "", false, billing.NotFoundf("charge %s", ref)
	}
	if current.PaymentLink != "" {
		return current.PaymentLink, false, nil
	}
	link, err := mint(ctx, current)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current = s.charges[ref]
	current.PaymentLink = link
	s.charges[ref] = current
	return link, true, nil
}

func (s *Store) linkLock(ref billing.ChargeRef) *sync.Mutex {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	lock, ok := s.linkLocks[ref]
	if !ok {
		lock = &sync.Mutex{}
		s.linkLocks[ref] = lock
	}
	return lock
}

// ListPendingCharges returns pending charges of kind for period with something outstanding.
func (s *Store) ListPendingCharges(ctx context.Context, kind billing.ChargeKind, period billing.Period) ([]billing.Charge, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Charge, 0)
	for _, c := range s.charges {
		if c.Kind == kind && c.Period == period && c.State == billing.StatePending && c.Outstanding().IsPositive() {
			out = append(out, c)
		}
	}
	sortCharges(out)
	return out, nil
}

func (s *Store) allCharges() []billing.Charge {
	out := make([]billing.Charge, 0, len(s.charges))
	for _, c := range s.charges {
		out = append(out, c)
	}
	sortCharges(out)
	return out
}

func sortCharges(charges []billing.Charge) {
	sort.Slice(charges, func(i, j int) bool {
		if charges[i].Period != charges[j].Period {
			return charges[i].Period.Before(charges[j].Period)
		}
		if charges[i].Kind != charges[j].Kind {
			return charges[i].Kind < charges[j].Kind
		}
		return charges[i].ID < charges[j].ID
	})
}
