package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkwise/backend/services/parking-service/internal/billing"
	"parkwise/backend/services/parking-service/internal/clock"
	"parkwise/backend/services/parking-service/internal/models"
	redisstore "parkwise/backend/services/parking-service/internal/redis"
	"parkwise/backend/services/parking-service/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// QueryService answers read-only questions about vehicles and visits.
type QueryService struct {
	uow    UnitOfWork
	config *ConfigService
	cache  ActiveVisitCache
	clock  clock.Clock
	logger *zap.Logger
}

// NewQueryService builds service.
func NewQueryService(deps Deps) *QueryService {
	deps = deps.withDefaults()
	return &QueryService{
		uow:    deps.UnitOfWork,
		config: deps.Config,
		cache:  deps.Cache,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
}

// Page selects a page of a listing; numbering starts at 1.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Page) offset() int { return (p.Number - 1) * p.Size }

// PageInfo describes the returned page.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func pageInfo(p Page, total int) PageInfo {
	return PageInfo{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: (total + p.Size - 1) / p.Size,
	}
}

// VehicleView is a vehicle annotated with its VIP status.
type VehicleView struct {
	models.Vehicle
	IsVIP bool `json:"is_vip"`
}

// FindVehicle looks a vehicle up by plate.
func (s *QueryService) FindVehicle(ctx context.Context, plate string) (*VehicleView, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	v, err := s.uow.Repos().Vehicles.FindByPlate(ctx, plate)
	if err != nil {
		return nil, vehicleNotFound(err, plate)
	}
	return &VehicleView{Vehicle: *v, IsVIP: v.IsVIP(s.clock.Now())}, nil
}

// LatestEntry returns the vehicle's open visit, from cache when warm.
func (s *QueryService) LatestEntry(ctx context.Context, plate string) (*redisstore.ActiveVisit, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		visit, err := s.cache.Get(ctx, plate)
		if err == nil {
			return visit, nil
		}
		if !errors.Is(err, redisstore.ErrMiss) {
			s.logger.Warn("active visit cache read failed", zap.String("license_plate", plate), zap.Error(err))
		}
	}

	v, session, err := openSession(ctx, s.uow.Repos(), plate, false)
	if err != nil {
		return nil, err
	}
	visit := &redisstore.ActiveVisit{
		SessionID:    session.ID,
		VehicleID:    v.ID,
		LicensePlate: v.LicensePlate,
		EntryTime:    session.EntryTime,
		PhotoPath:    session.PhotoPath,
	}
	if s.cache != nil {
		if err := s.cache.Save(ctx, *visit); err != nil {
			s.logger.Warn("failed to cache active visit", zap.String("license_plate", plate), zap.Error(err))
		}
	}
	return visit, nil
}

// ActiveRecord is an open visit with the fee accrued so far.
type ActiveRecord struct {
	SessionID    int64                  `json:"session_id"`
	LicensePlate string                 `json:"license_plate"`
	EntryTime    time.Time              `json:"entry_time"`
	PhotoPath    string                 `json:"photo_path,omitempty"`
	ParkedHours  int                    `json:"parked_hours"`
	Fee          float64                `json:"fee"`
	IsVIP        bool                   `json:"is_vip"`
	Payments     []models.PaymentRecord `json:"payments"`
}

// ActivePage is returned by ListActive.
type ActivePage struct {
	Items []ActiveRecord `json:"items"`
	PageInfo
}

// ListActive lists open visits, latest arrival first.
func (s *QueryService) ListActive(ctx context.Context, page Page) (*ActivePage, error) {
	page = page.normalized()
	r := s.uow.Repos()
	params, err := s.config.paramsFrom(ctx, r.Configs)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	sessions, total, err := r.Sessions.List(ctx, repository.ListOptions{Limit: page.Size, Offset: page.offset(), Desc: true})
	if err != nil {
		return nil, err
	}
	out := &ActivePage{Items: make([]ActiveRecord, 0, len(sessions)), PageInfo: pageInfo(page, total)}
	for _, d := range sessions {
		payments, err := r.Payments.ListByOwner(ctx, models.OwnedBySession(d.Session.ID))
		if err != nil {
			return nil, err
		}
		charge := params.Compute(d.Session.EntryTime, now, 0)
		out.Items = append(out.Items, ActiveRecord{
			SessionID:    d.Session.ID,
			LicensePlate: d.Vehicle.LicensePlate,
			EntryTime:    d.Session.EntryTime,
			PhotoPath:    d.Session.PhotoPath,
			ParkedHours:  charge.ParkedHours,
			Fee:          charge.Amount,
			IsVIP:        d.Vehicle.IsVIP(now),
			Payments:     payments,
		})
	}
	return out, nil
}

// CompletedRecord is an archived visit with its fee and payments.
type CompletedRecord struct {
	ArchivedSessionID int64                  `json:"archived_session_id"`
	LicensePlate      string                 `json:"license_plate"`
	EntryTime         time.Time              `json:"entry_time"`
	ExitTime          time.Time              `json:"exit_time"`
	ParkedHours       int                    `json:"parked_hours"`
	Fee               float64                `json:"fee"`
	TotalPaid         float64                `json:"total_paid"`
	IsVIP             bool                   `json:"is_vip"`
	Payments          []models.PaymentRecord `json:"payments"`
}

// CompletedPage is returned by ListCompleted.
type CompletedPage struct {
	Items []CompletedRecord `json:"items"`
	PageInfo
}

// ListCompleted lists archived visits, latest exit first.
func (s *QueryService) ListCompleted(ctx context.Context, page Page) (*CompletedPage, error) {
	page = page.normalized()
	r := s.uow.Repos()
	params, err := s.config.paramsFrom(ctx, r.Configs)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	archives, total, err := r.Archives.List(ctx, repository.ListOptions{Limit: page.Size, Offset: page.offset(), SortByExit: true, Desc: true})
	if err != nil {
		return nil, err
	}
	out := &CompletedPage{Items: make([]CompletedRecord, 0, len(archives)), PageInfo: pageInfo(page, total)}
	for _, d := range archives {
		payments, err := r.Payments.ListByOwner(ctx, models.OwnedByArchive(d.Archive.ID))
		if err != nil {
			return nil, err
		}
		charge := params.Compute(d.Archive.EntryTime, d.Archive.ExitTime, 0)
		out.Items = append(out.Items, CompletedRecord{
			ArchivedSessionID: d.Archive.ID,
			LicensePlate:      d.Vehicle.LicensePlate,
			EntryTime:         d.Archive.EntryTime,
			ExitTime:          d.Archive.ExitTime,
			ParkedHours:       charge.ParkedHours,
			Fee:               charge.Amount,
			TotalPaid:         totalPaid(payments),
			IsVIP:             d.Vehicle.IsVIP(now),
			Payments:          payments,
		})
	}
	return out, nil
}

// Sort keys accepted by ListRecords.
const (
	SortByEntryTime = "entry_time"
	SortByExitTime  = "exit_time"
)

// RecordsQuery selects a page of the merged open and archived view.
type RecordsQuery struct {
	Page   Page
	SortBy string
	Order  string
}

// Record is one row of the merged view.
type Record struct {
	Status            string     `json:"status"`
	SessionID         int64      `json:"session_id,omitempty"`
	ArchivedSessionID int64      `json:"archived_session_id,omitempty"`
	LicensePlate      string     `json:"license_plate"`
	EntryTime         time.Time  `json:"entry_time"`
	ExitTime          *time.Time `json:"exit_time,omitempty"`
	ParkedHours       int        `json:"parked_hours"`
	Fee               float64    `json:"fee"`
	IsVIP             bool       `json:"is_vip"`
}

// sortKey is the exit time when present and sorting by exit, else the entry time.
func (r Record) sortKey(byExit bool) time.Time {
	if byExit && r.ExitTime != nil {
		return *r.ExitTime
	}
	return r.EntryTime
}

// RecordsPage is returned by ListRecords.
type RecordsPage struct {
	Items       []Record `json:"items"`
	ActiveTotal int      `json:"active_total"`
	ClosedTotal int      `json:"completed_total"`
	SortBy      string   `json:"sort_by"`
	Order       string   `json:"order"`
	PageInfo
}

// ListRecords merges open and archived visits into one sorted, paginated view.
func (s *QueryService) ListRecords(ctx context.Context, q RecordsQuery) (*RecordsPage, error) {
	page := q.Page.normalized()
	sortBy := strings.ToLower(strings.TrimSpace(q.SortBy))
	switch sortBy {
	case "":
		sortBy = SortByEntryTime
	case SortByEntryTime, SortByExitTime:
	default:
		return nil, newError(ErrValidation, "sort_by must be %s or %s", SortByEntryTime, SortByExitTime)
	}
	order := strings.ToUpper(strings.TrimSpace(q.Order))
	switch order {
	case "":
		order = "DESC"
	case "ASC", "DESC":
	default:
		return nil, newError(ErrValidation, "order must be ASC or DESC")
	}
	byExit := sortBy == SortByExitTime
	desc := order == "DESC"

	r := s.uow.Repos()
	params, err := s.config.paramsFrom(ctx, r.Configs)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	need := page.offset() + page.Size

	active, activeTotal, err := collect(ctx, need, repository.ListOptions{Desc: desc}, r.Sessions.List)
	if err != nil {
		return nil, err
	}
	closed, closedTotal, err := collect(ctx, need, repository.ListOptions{SortByExit: byExit, Desc: desc}, r.Archives.List)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(active)+len(closed))
	for _, d := range active {
		records = append(records, activeRecord(d, params, now))
	}
	for _, d := range closed {
		records = append(records, closedRecord(d, params, now))
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].sortKey(byExit), records[j].sortKey(byExit)
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})

	start := min(page.offset(), len(records))
	end := min(start+page.Size, len(records))
	return &RecordsPage{
		Items:       records[start:end],
		ActiveTotal: activeTotal,
		ClosedTotal: closedTotal,
		SortBy:      sortBy,
		Order:       order,
		PageInfo:    pageInfo(page, activeTotal+closedTotal),
	}, nil
}

// collect pages through list until it has need rows or the source is exhausted.
func collect[T any](ctx context.Context, need int, opts repository.ListOptions, list func(context.Context, repository.ListOptions) ([]T, int, error)) ([]T, int, error) {
	var out []T
	total := 0
	for len(out) < need {
		opts.Limit = min(need-len(out), maxPageSize)
		opts.Offset = len(out)
		batch, n, err := list(ctx, opts)
		if err != nil {
			return nil, 0, err
		}
		total = n
		out = append(out, batch...)
		if len(batch) < opts.Limit {
			break
		}
	}
	return out, total, nil
}

func activeRecord(d models.SessionDetail, params billing.Params, now time.Time) Record {
	charge := params.Compute(d.Session.EntryTime, now, 0)
	return Record{
		Status:       "active",
		SessionID:    d.Session.ID,
		LicensePlate: d.Vehicle.LicensePlate,
		EntryTime:    d.Session.EntryTime,
		ParkedHours:  charge.ParkedHours,
		Fee:          charge.Amount,
		IsVIP:        d.Vehicle.IsVIP(now),
	}
}

func closedRecord(d models.ArchiveDetail, params billing.Params, now time.Time) Record {
	exit := d.Archive.ExitTime
	charge := params.Compute(d.Archive.EntryTime, exit, 0)
	return Record{
		Status:            "completed",
		ArchivedSessionID: d.Archive.ID,
		LicensePlate:      d.Vehicle.LicensePlate,
		EntryTime:         d.Archive.EntryTime,
		ExitTime:          &exit,
		ParkedHours:       charge.ParkedHours,
		Fee:               charge.Amount,
		IsVIP:             d.Vehicle.IsVIP(now),
	}
}
