package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/observability/metrics"
)

// FeeGenerationService simulates and commits monthly fee runs.
type FeeGenerationService struct {
	members billing.MemberRepository
	catalog billing.CatalogRepository
	charges billing.ChargeRepository
	refs    billing.ReferenceIssuer
	policy  billing.Policy
	clock   billing.Clock
	tracker *RunTracker
	logger  *zap.Logger
}

// NewFeeGenerationService constructs a service.
func NewFeeGenerationService(
	members billing.MemberRepository,
	catalog billing.CatalogRepository,
	charges billing.ChargeRepository,
	refs billing.ReferenceIssuer,
	policy billing.Policy,
	clock billing.Clock,
	logger *zap.Logger,
) (*FeeGenerationService, error) {
	if members == nil || catalog == nil || charges == nil {
		return nil, errors.New("fee generation service: nil repository")
	}
	if refs == nil {
		return nil, errors.New("fee generation service: nil reference issuer")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeGenerationService{
		members: members,
		catalog: catalog,
		charges: charges,
		refs:    refs,
		policy:  policy,
		clock:   clock,
		tracker: NewRunTracker(clock, defaultRunHistory),
		logger:  logger,
	}, nil
}

// Runs lists commits in progress and recently finished.
func (s *FeeGenerationService) Runs() []Run {
	return s.tracker.List()
}

// Simulate classifies every eligible member without writing anything.
func (s *FeeGenerationService) Simulate(ctx context.Context, period billing.Period, scope billing.Scope) (*billing.Batch, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveFeeRun("simulate", result, time.Since(start))
	}()

	scope, err := validateRun(period, scope)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	plan, err := s.classify(ctx, period, scope)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	batch := billing.NewBatch(uuid.NewString(), period, scope, false, s.clock.Now())
	for _, o := range plan.outcomes {
		batch.Add(o)
	}
	batch.FinishedAt = s.clock.Now()
	return batch, nil
}

// Commit re-runs the classification against current state and writes the
// category-changed and normal buckets. Every other bucket is reported as a
// skip. On failure the batch holds what was written so far; re-running
// the commit skips those members as already billed.
func (s *FeeGenerationService) Commit(ctx context.Context, period billing.Period, scope billing.Scope) (batch *billing.Batch, err error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveFeeRun("commit", result, time.Since(start))
	}()

	scope, err = validateRun(period, scope)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	if err := s.tracker.Begin(runID, period, scope); err != nil {
		return nil, err
	}
	defer func() {
		s.tracker.Finish(period, scope, batch, err)
	}()

	batch = billing.NewBatch(runID, period, scope, true, s.clock.Now())
	plan, err := s.classify(ctx, period, scope)
	if err != nil {
		return batch, err
	}

	writer := &committer{ctx: ctx, service: s, batch: batch, plan: plan}
	for _, o := range plan.outcomes {
		if err := ctx.Err(); err != nil {
			return batch, fmt.Errorf("fee commit interrupted: %w", err)
		}
		batch.Add(o)
		if err := o.Accept(writer); err != nil {
			s.logger.Error("fee commit failed",
				zap.String("run_id", runID),
				zap.String("period", period.String()),
				zap.Int64("member_id", o.Subject().MemberID),
				zap.Int("generated", batch.Generated),
				zap.Error(err))
			return batch, err
		}
	}
	batch.FinishedAt = s.clock.Now()
	metrics.AddFeeCharges(string(scope.Kind), batch.Generated)

	s.logger.Info("fee commit finished",
		zap.String("run_id", runID),
		zap.String("period", period.String()),
		zap.String("kind", string(scope.Kind)),
		zap.Int64("discipline_id", scope.DisciplineID),
		zap.Int64("member_id", scope.MemberID),
		zap.Int("processed", batch.Processed),
		zap.Int("generated", batch.Generated),
		zap.Int("skipped", len(batch.Skipped)),
		zap.String("billed", batch.Billable().StringFixed(2)))
	return batch, nil
}

func validateRun(period billing.Period, scope billing.Scope) (billing.Scope, error) {
	if period.IsZero() {
		return scope, billing.Validationf("period required")
	}
	return scope.Validate()
}

type feePlan struct {
	outcomes   []billing.Outcome
	categories map[int64]billing.Category
}

func (s *FeeGenerationService) classify(ctx context.Context, period billing.Period, scope billing.Scope) (feePlan, error) {
	if scope.Kind == billing.KindDiscipline {
		return s.classifyDisciplines(ctx, period, scope)
	}
	return s.classifyDues(ctx, period, scope)
}

func (s *FeeGenerationService) scopedMembers(ctx context.Context, scope billing.Scope) ([]billing.Member, error) {
	if scope.MemberID == 0 {
		return s.members.ListMembers(ctx, true)
	}
	member, err := s.members.FindMember(ctx, scope.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, billing.NotFoundf("member %d", scope.MemberID)
	}
	return []billing.Member{*member}, nil
}

func (s *FeeGenerationService) classifyDues(ctx context.Context, period billing.Period, scope billing.Scope) (feePlan, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return feePlan{}, err
	}
	byID := make(map[int64]billing.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	members, err := s.scopedMembers(ctx, scope)
	if err != nil {
		return feePlan{}, err
	}
	lastCategories, err := s.charges.LastDueCategories(ctx, period)
	if err != nil {
		return feePlan{}, err
	}
	existing, err := s.charges.ExistingCharges(ctx, billing.KindDue, period)
	if err != nil {
		return feePlan{}, err
	}

	known := make(map[int64]*billing.Member, len(members))
	for i := range members {
		known[members[i].ID] = &members[i]
	}
	groups := map[int64]*billing.FamilyGroup{}

	plan := feePlan{categories: byID, outcomes: make([]billing.Outcome, 0, len(members))}
	for _, m := range members {
		in := billing.DueInput{Member: m, Period: period, Categories: categories}

		if c, ok := byID[m.CategoryID]; ok {
			in.Category = &c
		}
		if last, ok := lastCategories[m.ID]; ok {
			if c, ok := byID[last]; ok {
				in.LastCategory = &c
			}
		}

		if m.FamilyGroupID != 0 {
			group, ok := groups[m.FamilyGroupID]
			if !ok {
				if group, err = s.members.FindFamilyGroup(ctx, m.FamilyGroupID); err != nil {
					return feePlan{}, err
				}
				groups[m.FamilyGroupID] = group
			}
			in.FamilyGroup = group
			if group != nil && group.TitularID != 0 {
				titular, ok := known[group.TitularID]
				if !ok {
					if titular, err = s.members.FindMember(ctx, group.TitularID); err != nil {
						return feePlan{}, err
					}
					known[group.TitularID] = titular
				}
				in.Titular = titular
			}
		}

		key := billing.ChargeKey{Kind: billing.KindDue, MemberID: m.ID, Period: period}
		if c, ok := existing[key]; ok {
			in.Existing = &c
		}
		plan.outcomes = append(plan.outcomes, billing.ClassifyDue(in, s.policy))
	}
	return plan, nil
}

func (s *FeeGenerationService) classifyDisciplines(ctx context.Context, period billing.Period, scope billing.Scope) (feePlan, error) {
	disciplines, err := s.catalog.ListDisciplines(ctx)
	if err != nil {
		return feePlan{}, err
	}
	byID := make(map[int64]billing.Discipline, len(disciplines))
	for _, d := range disciplines {
		byID[d.ID] = d
	}
	if scope.DisciplineID != 0 {
		if _, ok := byID[scope.DisciplineID]; !ok {
			return feePlan{}, billing.NotFoundf("discipline %d", scope.DisciplineID)
		}
	}
	members, err := s.scopedMembers(ctx, scope)
	if err != nil {
		return feePlan{}, err
	}
	known := make(map[int64]billing.Member, len(members))
	for _, m := range members {
		known[m.ID] = m
	}
	enrollments, err := s.catalog.ListEnrollments(ctx, scope.DisciplineID, scope.MemberID)
	if err != nil {
		return feePlan{}, err
	}
	existing, err := s.charges.ExistingCharges(ctx, billing.KindDiscipline, period)
	if err != nil {
		return feePlan{}, err
	}

	sort.SliceStable(enrollments, func(i, j int) bool {
		if enrollments[i].MemberID != enrollments[j].MemberID {
			return enrollments[i].MemberID < enrollments[j].MemberID
		}
		return enrollments[i].DisciplineID < enrollments[j].DisciplineID
	})
	plan := feePlan{outcomes: make([]billing.Outcome, 0, len(enrollments))}
	for _, e := range enrollments {
		if !e.Active {
			continue
		}
		member, ok := known[e.MemberID]
		if !ok {
			continue
		}
		discipline, ok := byID[e.DisciplineID]
		if !ok || (!discipline.Active && scope.DisciplineID != discipline.ID) {
			continue
		}
		in := billing.DisciplineInput{Member: member, Discipline: discipline, Enrollment: e}
		key := billing.ChargeKey{Kind: billing.KindDiscipline, MemberID: member.ID, Period: period, DisciplineID: discipline.ID}
		if c, ok := existing[key]; ok {
			in.Existing = &c
		}
		plan.outcomes = append(plan.outcomes, billing.ClassifyDiscipline(in))
	}
	return plan, nil
}

// committer writes the generating buckets and records skips for the rest.
type committer struct {
	ctx     context.Context
	service *FeeGenerationService
	batch   *billing.Batch
	plan    feePlan
}

func (c *committer) CategoryChanged(o billing.CategoryChanged) error {
	description := fmt.Sprintf("Due %s (%s)", c.batch.Period, o.NewCategory)
	return c.write(o, billing.KindDue, o.NewCategoryID, 0, o.Amount, description)
}

func (c *committer) Normal(o billing.Normal) error {
	if c.batch.Scope.Kind == billing.KindDiscipline {
		description := fmt.Sprintf("%s %s", o.Who.DisciplineName, c.batch.Period)
		return c.write(o, billing.KindDiscipline, 0, o.DisciplineID, o.Amount, description)
	}
	description := fmt.Sprintf("Due %s", c.batch.Period)
	if cat, ok := c.plan.categories[o.CategoryID]; ok {
		description = fmt.Sprintf("Due %s (%s)", c.batch.Period, cat.Label())
	}
	return c.write(o, billing.KindDue, o.CategoryID, 0, o.Amount, description)
}

func (c *committer) ExemptLifetime(o billing.ExemptLifetime) error {
	return c.skip(o, string(billing.BucketExemptLifetime)+": "+o.Reason)
}

func (c *committer) ExemptFamilyGroup(o billing.ExemptFamilyGroup) error {
	reason := string(billing.BucketExemptFamilyGroup)
	if o.TitularID != 0 {
		reason = fmt.Sprintf("%s: titular %d", reason, o.TitularID)
	}
	return c.skip(o, reason)
}

func (c *committer) MissingData(o billing.MissingData) error {
	return c.skip(o, string(billing.BucketMissingData)+": "+o.Reason)
}

func (c *committer) AlreadyBilled(o billing.AlreadyBilled) error {
	return c.skip(o, string(billing.BucketAlreadyBilled))
}

func (c *committer) skip(o billing.Outcome, reason string) error {
	c.batch.Skip(o, reason)
	metrics.IncFeeSkip(string(o.Bucket()))
	return nil
}

func (c *committer) write(o billing.Outcome, kind billing.ChargeKind, categoryID, disciplineID int64, amount decimal.Decimal, description string) error {
	now := c.service.clock.Now()
	charge := billing.Charge{
		Kind:          kind,
		MemberID:      o.Subject().MemberID,
		Period:        c.batch.Period,
		CategoryID:    categoryID,
		DisciplineID:  disciplineID,
		Description:   description,
		Amount:        amount,
		Paid:          decimal.Zero,
		State:         billing.StatePending,
		ReferenceCode: c.service.refs.Next(kind),
		GeneratedAt:   now,
	}
	_, created, err := c.service.charges.InsertGenerated(c.ctx, charge)
	if err != nil {
		return fmt.Errorf("insert %s charge for member %d: %w", kind, charge.MemberID, err)
	}
	if !created {
		c.batch.Skipped = append(c.batch.Skipped, billing.Skip{
			Who:    o.Subject(),
			Bucket: billing.BucketAlreadyBilled,
			Reason: string(billing.BucketAlreadyBilled),
		})
		metrics.IncFeeSkip(string(billing.BucketAlreadyBilled))
		return nil
	}
	c.batch.Generated++
	return nil
}
