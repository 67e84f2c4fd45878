package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
)

// Store is an in-memory implementation of every billing repository port
// with the same uniqueness rules as the SQL schema.
type Store struct {
	mu sync.RWMutex

	members     map[int64]billing.Member
	groups      map[int64]billing.FamilyGroup
	categories  map[int64]billing.Category
	disciplines map[int64]billing.Discipline
	methods     map[int64]billing.PaymentMethod
	enrollments []billing.Enrollment

	charges    map[billing.ChargeRef]billing.Charge
	slots      map[billing.ChargeKey]billing.ChargeRef
	references map[string]billing.ChargeRef
	payments   []billing.Payment
	chargeSeq  map[billing.ChargeKind]int64
	paymentSeq int64

	linkMu    sync.Mutex
	linkLocks map[billing.ChargeRef]*sync.Mutex
}

var (
	_ billing.MemberRepository  = (*Store)(nil)
	_ billing.CatalogRepository = (*Store)(nil)
	_ billing.ChargeRepository  = (*Store)(nil)
	_ billing.ReportRepository  = (*Store)(nil)
)

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		members:     map[int64]billing.Member{},
		groups:      map[int64]billing.FamilyGroup{},
		categories:  map[int64]billing.Category{},
		disciplines: map[int64]billing.Discipline{},
		methods:     map[int64]billing.PaymentMethod{},
		charges:     map[billing.ChargeRef]billing.Charge{},
		slots:       map[billing.ChargeKey]billing.ChargeRef{},
		references:  map[string]billing.ChargeRef{},
		chargeSeq:   map[billing.ChargeKind]int64{},
		linkLocks:   map[billing.ChargeRef]*sync.Mutex{},
	}
}

// PutMember inserts or replaces a member.
func (s *Store) PutMember(m billing.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

// PutFamilyGroup inserts or replaces a family group.
func (s *Store) PutFamilyGroup(g billing.FamilyGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(c billing.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

// PutDiscipline inserts or replaces a discipline.
func (s *Store) PutDiscipline(d billing.Discipline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disciplines[d.ID] = d
}

// PutPaymentMethod inserts or replaces a payment method.
func (s *Store) PutPaymentMethod(m billing.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[m.ID] = m
}

// PutEnrollment appends an enrollment.
func (s *Store) PutEnrollment(e billing.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments = append(s.enrollments, e)
}

// ---- MemberRepository ----

// FindMember loads a member.
func (s *Store) FindMember(ctx context.Context, id int64) (*billing.Member, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// FindMemberByDocument loads a member by document id.
func (s *Store) FindMemberByDocument(ctx context.Context, documentID string) (*billing.Member, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.DocumentID == documentID {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

// SearchMembers pages members matching the query.
func (s *Store) SearchMembers(ctx context.Context, query string, page billing.Pagination) (billing.MemberPage, error) {
	members, err := s.ListMembers(ctx, false)
	if err != nil {
		return billing.MemberPage{}, err
	}
	return billing.SearchMembers(members, query, page), nil
}

// ListMembers returns members ordered by id.
func (s *Store) ListMembers(ctx context.Context, activeOnly bool) ([]billing.Member, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Member, 0, len(s.members))
	for _, m := range s.members {
		if activeOnly && !m.Active() {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindFamilyGroup loads a family group.
func (s *Store) FindFamilyGroup(ctx context.Context, id int64) (*billing.FamilyGroup, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// ---- CatalogRepository ----

// ListCategories returns categories ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]billing.Category, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindCategory loads a category.
func (s *Store) FindCategory(ctx context.Context, id int64) (*billing.Category, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// UpdateCategoryPrice sets a category price.
func (s *Store) UpdateCategoryPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return billing.NotFoundf("category %d", id)
	}
	c.Price = price
	s.categories[id] = c
	return nil
}

// ListDisciplines returns disciplines ordered by id.
func (s *Store) ListDisciplines(ctx context.Context) ([]billing.Discipline, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Discipline, 0, len(s.disciplines))
	for _, d := range s.disciplines {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindDiscipline loads a discipline.
func (s *Store) FindDiscipline(ctx context.Context, id int64) (*billing.Discipline, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disciplines[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// ListPaymentMethods returns payment methods ordered by id.
func (s *Store) ListPaymentMethods(ctx context.Context) ([]billing.PaymentMethod, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.PaymentMethod, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEnrollments returns active enrollments; zero ids mean all.
func (s *Store) ListEnrollments(ctx context.Context, disciplineID, memberID int64) ([]billing.Enrollment, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Enrollment, 0)
	for _, e := range s.enrollments {
		if !e.Active {
			continue
		}
		if disciplineID != 0 && e.DisciplineID != disciplineID {
			continue
		}
		if memberID != 0 && e.MemberID != memberID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
