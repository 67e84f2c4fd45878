package interfaces

import (
	"time"

	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

const timeLayout = time.RFC3339

type scopeDTO struct {
	Kind         string `json:"kind,omitempty"`
	DisciplineID int64  `json:"discipline_id,omitempty"`
	MemberID     int64  `json:"member_id,omitempty"`
}

func (s scopeDTO) scope() billing.Scope {
	return billing.Scope{Kind: billing.ChargeKind(s.Kind), DisciplineID: s.DisciplineID, MemberID: s.MemberID}
}

func toScopeDTO(s billing.Scope) scopeDTO {
	return scopeDTO{Kind: string(s.Kind), DisciplineID: s.DisciplineID, MemberID: s.MemberID}
}

type subjectDTO struct {
	MemberID       int64  `json:"member_id"`
	MemberName     string `json:"member_name"`
	DocumentID     string `json:"document_id,omitempty"`
	DisciplineID   int64  `json:"discipline_id,omitempty"`
	DisciplineName string `json:"discipline_name,omitempty"`
}

func toSubjectDTO(s billing.Subject) subjectDTO {
	return subjectDTO{
		MemberID:       s.MemberID,
		MemberName:     s.MemberName,
		DocumentID:     s.DocumentID,
		DisciplineID:   s.DisciplineID,
		DisciplineName: s.DisciplineName,
	}
}

type categoryChangedDTO struct {
	subjectDTO
	OldCategoryID int64  `json:"old_category_id"`
	OldCategory   string `json:"old_category"`
	NewCategoryID int64  `json:"new_category_id"`
	NewCategory   string `json:"new_category"`
	Amount        string `json:"amount"`
}

type reasonDTO struct {
	subjectDTO
	Reason string `json:"reason"`
}

type familyGroupDTO struct {
	subjectDTO
	FamilyGroupID int64 `json:"family_group_id"`
	TitularID     int64 `json:"titular_id"`
}

type alreadyBilledDTO struct {
	subjectDTO
	ChargeID      int64  `json:"charge_id"`
	ReferenceCode string `json:"reference_code,omitempty"`
}

type normalDTO struct {
	subjectDTO
	CategoryID   int64  `json:"category_id,omitempty"`
	DisciplineID int64  `json:"discipline_id,omitempty"`
	Amount       string `json:"amount"`
}

type skipDTO struct {
	subjectDTO
	Bucket string `json:"bucket"`
	Reason string `json:"reason"`
}

type bucketsDTO struct {
	CategoryChanged   []categoryChangedDTO `json:"category_changed"`
	ExemptLifetime    []reasonDTO          `json:"exempt_lifetime"`
	ExemptFamilyGroup []familyGroupDTO     `json:"exempt_family_group"`
	MissingData       []reasonDTO          `json:"missing_data"`
	AlreadyBilled     []alreadyBilledDTO   `json:"already_billed"`
	Normal            []normalDTO          `json:"normal"`
}

type batchDTO struct {
	ID         string         `json:"id,omitempty"`
	Period     string         `json:"period"`
	Scope      scopeDTO       `json:"scope"`
	Committed  bool           `json:"committed"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Buckets    bucketsDTO     `json:"buckets"`
	Counts     map[string]int `json:"counts"`
	Processed  int            `json:"processed"`
	Generated  int            `json:"generated"`
	Billable   string         `json:"billable"`
	Skipped    []skipDTO      `json:"skipped"`
}

func toBatchDTO(b *billing.Batch) batchDTO {
	out := batchDTO{
		ID:         b.ID,
		Period:     b.Period.String(),
		Scope:      toScopeDTO(b.Scope),
		Committed:  b.Committed,
		StartedAt:  formatTime(b.StartedAt),
		FinishedAt: formatTime(b.FinishedAt),
		Counts:     map[string]int{},
		Processed:  b.Processed,
		Generated:  b.Generated,
		Billable:   money.Format(b.Billable()),
		Skipped:    make([]skipDTO, 0, len(b.Skipped)),
		Buckets: bucketsDTO{
			CategoryChanged:   make([]categoryChangedDTO, 0, len(b.CategoryChanged)),
			ExemptLifetime:    make([]reasonDTO, 0, len(b.ExemptLifetime)),
			ExemptFamilyGroup: make([]familyGroupDTO, 0, len(b.ExemptFamilyGroup)),
			MissingData:       make([]reasonDTO, 0, len(b.MissingData)),
			AlreadyBilled:     make([]alreadyBilledDTO, 0, len(b.AlreadyBilled)),
			Normal:            make([]normalDTO, 0, len(b.Normal)),
		},
	}
	for bucket, n := range b.Counts() {
		out.Counts[string(bucket)] = n
	}
	for _, o := range b.CategoryChanged {
		out.Buckets.CategoryChanged = append(out.Buckets.CategoryChanged, categoryChangedDTO{
			subjectDTO:    toSubjectDTO(o.Who),
			OldCategoryID: o.OldCategoryID,
			OldCategory:   o.OldCategory,
			NewCategoryID: o.NewCategoryID,
			NewCategory:   o.NewCategory,
			Amount:        money.Format(o.Amount),
		})
	}
	for _, o := range b.ExemptLifetime {
		out.Buckets.ExemptLifetime = append(out.Buckets.ExemptLifetime, reasonDTO{subjectDTO: toSubjectDTO(o.Who), Reason: o.Reason})
	}
	for _, o := range b.ExemptFamilyGroup {
		out.Buckets.ExemptFamilyGroup = append(out.Buckets.ExemptFamilyGroup, familyGroupDTO{
			subjectDTO:    toSubjectDTO(o.Who),
			FamilyGroupID: o.FamilyGroupID,
			TitularID:     o.TitularID,
		})
	}
	for _, o := range b.MissingData {
		out.Buckets.MissingData = append(out.Buckets.MissingData, reasonDTO{subjectDTO: toSubjectDTO(o.Who), Reason: o.Reason})
	}
	for _, o := range b.AlreadyBilled {
		out.Buckets.AlreadyBilled = append(out.Buckets.AlreadyBilled, alreadyBilledDTO{
			subjectDTO:    toSubjectDTO(o.Who),
			ChargeID:      o.ChargeID,
			ReferenceCode: o.ReferenceCode,
		})
	}
	for _, o := range b.Normal {
		out.Buckets.Normal = append(out.Buckets.Normal, normalDTO{
			subjectDTO:   toSubjectDTO(o.Who),
			CategoryID:   o.CategoryID,
			DisciplineID: o.DisciplineID,
			Amount:       money.Format(o.Amount),
		})
	}
	for _, s := range b.Skipped {
		out.Skipped = append(out.Skipped, skipDTO{subjectDTO: toSubjectDTO(s.Who), Bucket: string(s.Bucket), Reason: s.Reason})
	}
	return out
}

type runDTO struct {
	ID         string   `json:"id"`
	Period     string   `json:"period"`
	Scope      scopeDTO `json:"scope"`
	Status     string   `json:"status"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
	Processed  int      `json:"processed"`
	Generated  int      `json:"generated"`
	Skipped    int      `json:"skipped"`
	Error      string   `json:"error,omitempty"`
}

func toRunDTOs(runs []billingapp.Run) []runDTO {
	out := make([]runDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, runDTO{
			ID:         r.ID,
			Period:     r.Period.String(),
			Scope:      toScopeDTO(r.Scope),
			Status:     r.Status,
			StartedAt:  formatTime(r.StartedAt),
			FinishedAt: formatTime(r.FinishedAt),
			Processed:  r.Processed,
			Generated:  r.Generated,
			Skipped:    r.Skipped,
			Error:      r.Error,
		})
	}
	return out
}

type memberSummaryDTO struct {
	ID         int64  `json:"id"`
	GivenName  string `json:"given_name"`
	Surname    string `json:"surname"`
	DocumentID string `json:"document_id"`
	State      string `json:"state"`
}

func toMemberSummaryDTO(m billing.MemberSummary) memberSummaryDTO {
	return memberSummaryDTO{ID: m.ID, GivenName: m.GivenName, Surname: m.Surname, DocumentID: m.DocumentID, State: m.State}
}

type ledgerEntryDTO struct {
	Type          string `json:"type"`
	Kind          string `json:"kind"`
	ChargeID      int64  `json:"charge_id"`
	PaymentID     int64  `json:"payment_id,omitempty"`
	Description   string `json:"description"`
	Delta         string `json:"delta"`
	Date          string `json:"date,omitempty"`
	State         string `json:"state"`
	ReferenceCode string `json:"reference_code,omitempty"`
	PaymentLink   string `json:"payment_link,omitempty"`
}

type monthDTO struct {
	Period  string           `json:"period"`
	Entries []ledgerEntryDTO `json:"entries"`
	Charged string           `json:"charged"`
	Paid    string           `json:"paid"`
	Balance string           `json:"balance"`
	Running string           `json:"running_balance"`
}

type ledgerDTO struct {
	Member      memberSummaryDTO `json:"member"`
	Months      []monthDTO       `json:"months"`
	TotalBruto  string           `json:"total_bruto"`
	TotalPagado string           `json:"total_pagado"`
	TotalSaldo  string           `json:"total_saldo"`
}

func toLedgerDTO(l billing.Ledger) ledgerDTO {
	out := ledgerDTO{
		Member:      toMemberSummaryDTO(l.Member),
		Months:      make([]monthDTO, 0, len(l.Months)),
		TotalBruto:  money.Format(l.TotalBruto),
		TotalPagado: money.Format(l.TotalPagado),
		TotalSaldo:  money.Format(l.TotalSaldo),
	}
	for _, m := range l.Months {
		month := monthDTO{
			Period:  m.Period.String(),
			Entries: make([]ledgerEntryDTO, 0, len(m.Entries)),
			Charged: money.Format(m.Charged),
			Paid:    money.Format(m.Paid),
			Balance: money.Format(m.Balance),
			Running: money.Format(m.Running),
		}
		for _, e := range m.Entries {
			month.Entries = append(month.Entries, ledgerEntryDTO{
				Type:          e.Type,
				Kind:          string(e.Kind),
				ChargeID:      e.ChargeID,
				PaymentID:     e.PaymentID,
				Description:   e.Description,
				Delta:         money.Format(e.Delta),
				Date:          formatTime(e.Date),
				State:         string(e.State),
				ReferenceCode: e.ReferenceCode,
				PaymentLink:   e.PaymentLink,
			})
		}
		out.Months = append(out.Months, month)
	}
	return out
}

type chargeDTO struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	MemberID      int64  `json:"member_id"`
	Period        string `json:"period"`
	CategoryID    int64  `json:"category_id,omitempty"`
	DisciplineID  int64  `json:"discipline_id,omitempty"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Paid          string `json:"paid"`
	Outstanding   string `json:"outstanding"`
	State         string `json:"state"`
	ReferenceCode string `json:"reference_code,omitempty"`
	PaymentLink   string `json:"payment_link,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty"`
	PaidAt        string `json:"paid_at,omitempty"`
}

func toChargeDTO(c billing.Charge) chargeDTO {
	return chargeDTO{
		ID:            c.ID,
		Kind:          string(c.Kind),
		MemberID:      c.MemberID,
		Period:        c.Period.String(),
		CategoryID:    c.CategoryID,
		DisciplineID:  c.DisciplineID,
		Description:   c.Description,
		Amount:        money.Format(c.Amount),
		Paid:          money.Format(c.Paid),
		Outstanding:   money.Format(c.Outstanding()),
		State:         string(c.State),
		ReferenceCode: c.ReferenceCode,
		PaymentLink:   c.PaymentLink,
		GeneratedAt:   formatTime(c.GeneratedAt),
		PaidAt:        formatTime(c.PaidAt),
	}
}

func toChargeDTOs(charges []billing.Charge) []chargeDTO {
	out := make([]chargeDTO, 0, len(charges))
	for _, c := range charges {
		out = append(out, toChargeDTO(c))
	}
	return out
}

type paymentDTO struct {
	ID       int64  `json:"id"`
	ChargeID int64  `json:"charge_id"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
	Note     string `json:"note,omitempty"`
}

func toPaymentDTO(p billing.Payment) paymentDTO {
	return paymentDTO{
		ID:       p.ID,
		ChargeID: p.ChargeID,
		Kind:     string(p.Kind),
		Amount:   money.Format(p.Amount),
		Date:     p.Date.UTC().Format("2006-01-02"),
		Note:     p.Note,
	}
}

type totalsDTO struct {
	Members     int    `json:"members"`
	Charges     int    `json:"charges"`
	Outstanding string `json:"outstanding"`
}

func toTotalsDTO(t billing.ReportTotals) totalsDTO {
	return totalsDTO{Members: t.Members, Charges: t.Charges, Outstanding: money.Format(t.Outstanding)}
}

type delinquencyRowDTO struct {
	Member          memberSummaryDTO `json:"member"`
	PaymentMethodID int64            `json:"payment_method_id,omitempty"`
	Charges         int              `json:"charges"`
	Outstanding     string           `json:"outstanding"`
	OldestPeriod    string           `json:"oldest_period"`
}

type delinquencyPageDTO struct {
	Rows     []delinquencyRowDTO `json:"rows"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Totals   totalsDTO           `json:"totals"`
}

func toDelinquencyPageDTO(p billing.DelinquencyPage) delinquencyPageDTO {
	out := delinquencyPageDTO{
		Rows:     make([]delinquencyRowDTO, 0, len(p.Rows)),
		Page:     p.Page,
		PageSize: p.PageSize,
		Totals:   toTotalsDTO(p.Totals),
	}
	for _, r := range p.Rows {
		out.Rows = append(out.Rows, delinquencyRowDTO{
			Member:          toMemberSummaryDTO(r.Member),
			PaymentMethodID: r.PaymentMethodID,
			Charges:         r.Charges,
			Outstanding:     money.Format(r.Outstanding),
			OldestPeriod:    r.OldestPeriod.String(),
		})
	}
	return out
}

type consolidatedRowDTO struct {
	Member          memberSummaryDTO `json:"member"`
	PaymentMethodID int64            `json:"payment_method_id,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	Unpaid          int              `json:"unpaid"`
	Outstanding     string           `json:"outstanding"`
	OldestPeriod    string           `json:"oldest_period"`
}

type methodTotalsDTO struct {
	PaymentMethodID int64  `json:"payment_method_id"`
	PaymentMethod   string `json:"payment_method"`
	Members         int    `json:"members"`
	Charges         int    `json:"charges"`
	Outstanding     string `json:"outstanding"`
}

type consolidatedDTO struct {
	Rows     []consolidatedRowDTO `json:"rows"`
	ByMethod []methodTotalsDTO    `json:"by_payment_method"`
	Overall  totalsDTO            `json:"overall"`
}

func toConsolidatedDTO(r billing.ConsolidatedReport) consolidatedDTO {
	out := consolidatedDTO{
		Rows:     make([]consolidatedRowDTO, 0, len(r.Rows)),
		ByMethod: make([]methodTotalsDTO, 0, len(r.ByMethod)),
		Overall:  toTotalsDTO(r.Overall),
	}
	for _, row := range r.Rows {
		out.Rows = append(out.Rows, consolidatedRowDTO{
			Member:          toMemberSummaryDTO(row.Member),
			PaymentMethodID: row.PaymentMethodID,
			PaymentMethod:   row.PaymentMethod,
			Unpaid:          row.Unpaid,
			Outstanding:     money.Format(row.Outstanding),
			OldestPeriod:    row.OldestPeriod.String(),
		})
	}
	for _, t := range r.ByMethod {
		out.ByMethod = append(out.ByMethod, methodTotalsDTO{
			PaymentMethodID: t.PaymentMethodID,
			PaymentMethod:   t.PaymentMethod,
			Members:         t.Members,
			Charges:         t.Charges,
			Outstanding:     money.Format(t.Outstanding),
		})
	}
	return out
}

type categoryDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Applicability string `json:"applicability"`
	Condition     string `json:"condition"`
	Price         string `json:"price"`
	AgeThreshold  int    `json:"age_threshold"`
}

func toCategoryDTO(c billing.Category) categoryDTO {
	return categoryDTO{
		ID:            c.ID,
		Name:          c.Name,
		Applicability: string(c.Applicability),
		Condition:     string(c.Condition),
		Price:         money.Format(c.Price),
		AgeThreshold:  c.AgeThreshold,
	}
}

type disciplineDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Active bool   `json:"active"`
}

type paymentMethodDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}
