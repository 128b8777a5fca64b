package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkwise/backend/services/parking-service/internal/billing"
	"parkwise/backend/services/parking-service/internal/clock"
	"parkwise/backend/services/parking-service/internal/metrics"
	"parkwise/backend/services/parking-service/internal/models"
	redisstore "parkwise/backend/services/parking-service/internal/redis"
	"parkwise/backend/services/parking-service/internal/repository"
)

// ActiveVisitCache is the read-through cache of open visits.
type ActiveVisitCache interface {
	Save(ctx context.Context, visit redisstore.ActiveVisit) error
	Get(ctx context.Context, plate string) (*redisstore.ActiveVisit, error)
	Delete(ctx context.Context, plate string) error
}

// Deps wires ParkingService and QueryService. Cache, Publisher, Membership and Metrics are optional.
type Deps struct {
	UnitOfWork UnitOfWork
	Config     *ConfigService
	Membership MembershipLookup
	Cache      ActiveVisitCache
	Publisher  Publisher
	Metrics    *metrics.Parking
	Clock      clock.Clock
	Logger     *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Membership == nil {
		d.Membership = VIPDiscount{}
	}
	if d.Publisher == nil {
		d.Publisher = noopPublisher{}
	}
	if d.Config == nil {
		d.Config = NewConfigService(d.UnitOfWork, billing.BuiltinDefaults, d.Clock, d.Logger)
	}
	return d
}

// ParkingService drives a visit from arrival to exit.
type ParkingService struct {
	uow        UnitOfWork
	config     *ConfigService
	ledger     ledger
	membership MembershipLookup
	cache      ActiveVisitCache
	publisher  Publisher
	metrics    *metrics.Parking
	clock      clock.Clock
	logger     *zap.Logger
}

// NewParkingService builds service.
func NewParkingService(deps Deps) *ParkingService {
	deps = deps.withDefaults()
	return &ParkingService{
		uow:        deps.UnitOfWork,
		config:     deps.Config,
		membership: deps.Membership,
		cache:      deps.Cache,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// ArrivalResult is returned by Arrive.
type ArrivalResult struct {
	VehicleID    int64     `json:"vehicle_id"`
	SessionID    int64     `json:"session_id"`
	PaymentID    int64     `json:"payment_id"`
	LicensePlate string    `json:"license_plate"`
	EntryTime    time.Time `json:"entry_time"`
	Discount     float64   `json:"discount"`
}

// SettledPayment is returned by Settle.
type SettledPayment struct {
	PaymentID    int64     `json:"payment_id"`
	LicensePlate string    `json:"license_plate"`
	Amount       float64   `json:"amount"`
	Discount     float64   `json:"discount"`
	SettledAt    time.Time `json:"settled_at"`
	EntryTime    time.Time `json:"entry_time"`
	StartTime    time.Time `json:"start_time"`
	ParkedHours  int       `json:"parked_hours"`
}

// ClosedVisit is returned by Close.
type ClosedVisit struct {
	ArchivedSessionID int64                  `json:"archived_session_id"`
	VehicleID         int64                  `json:"vehicle_id"`
	LicensePlate      string                 `json:"license_plate"`
	EntryTime         time.Time              `json:"entry_time"`
	ExitTime          time.Time              `json:"exit_time"`
	Payments          []models.PaymentRecord `json:"payments"`
	TotalPaid         float64                `json:"total_paid"`
}

func normalizePlate(plate string) (string, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return "", newError(ErrValidation, "license plate is required")
	}
	return plate, nil
}

// Arrive admits a vehicle: it registers the plate if unseen, opens a session and its
// pending payment in one transaction.
func (s *ParkingService) Arrive(ctx context.Context, plate, photoPath string) (*ArrivalResult, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var res ArrivalResult
	var visit redisstore.ActiveVisit
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		v, err := r.Vehicles.Ensure(ctx, plate)
		if err != nil {
			return err
		}
		session := models.Session{VehicleID: v.ID, EntryTime: now, PhotoPath: strings.TrimSpace(photoPath)}
		if err := r.Sessions.Create(ctx, &session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(ErrConflict, "vehicle %s already has an open session", plate)
			}
			return err
		}
		discount, err := s.membership.EntryDiscount(ctx, v, now)
		if err != nil {
			return err
		}
		p, err := s.ledger.openPending(ctx, r.Payments, session.ID, discount)
		if err != nil {
			return err
		}
		res = ArrivalResult{
			VehicleID:    v.ID,
			SessionID:    session.ID,
			PaymentID:    p.ID,
			LicensePlate: v.LicensePlate,
			EntryTime:    session.EntryTime,
			Discount:     p.Discount,
		}
		visit = redisstore.ActiveVisit{
			SessionID:    session.ID,
			VehicleID:    v.ID,
			LicensePlate: v.LicensePlate,
			EntryTime:    session.EntryTime,
			PhotoPath:    session.PhotoPath,
		}
		return nil
	})
	if err != nil {
		s.recordConflict("arrive", err)
		return nil, err
	}

	s.metrics.Arrived()
	s.cacheVisit(ctx, visit)
	s.publisher.Publish(Event{Type: EventVehicleArrived, LicensePlate: res.LicensePlate, SessionID: res.SessionID, PaymentID: res.PaymentID, At: now})
	s.logger.Info("vehicle arrived",
		zap.String("license_plate", res.LicensePlate),
		zap.Int64("session_id", res.SessionID),
		zap.Int64("payment_id", res.PaymentID),
	)
	return &res, nil
}

// EvaluateCharge reports whether the vehicle owes money now. When it does and no pending
// record exists, one is created, so this runs as a command.
func (s *ParkingService) EvaluateCharge(ctx context.Context, plate string) (*ChargeEvaluation, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	eval, err := s.evaluate(ctx, plate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.metrics.Evaluated(eval.NeedsNewPayment)
	return eval, nil
}

func (s *ParkingService) evaluate(ctx context.Context, plate string, now time.Time) (*ChargeEvaluation, error) {
	var eval *ChargeEvaluation
	err := s.uow.WithinTx(ctx, func(r Repos) error {
		_, session, err := openSession(ctx, r, plate, true)
		if err != nil {
			return err
		}
		params, err := s.config.paramsFrom(ctx, r.Configs)
		if err != nil {
			return err
		}
		eval, err = s.ledger.evaluate(ctx, r.Payments, session, now, params)
		if err != nil {
			return err
		}
		eval.Plate = plate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// Settle charges the vehicle's pending record for the time since entry, or since the
// previous settlement, and stamps it settled.
func (s *ParkingService) Settle(ctx context.Context, plate string) (*SettledPayment, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var res SettledPayment
	var sessionID int64
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		v, session, err := openSession(ctx, r, plate, true)
		if err != nil {
			return err
		}
		sessionID = session.ID
		params, err := s.config.paramsFrom(ctx, r.Configs)
		if err != nil {
			return err
		}
		start := session.EntryTime
		last, err := r.Payments.LatestSettled(ctx, session.ID)
		switch {
		case err == nil:
			start = *last.SettledAt
		case errors.Is(err, repository.ErrNotFound):
			last = nil
		default:
			return err
		}

		pending, err := r.Payments.FindUnsettled(ctx, session.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if last != nil {
				return newError(ErrConflict, "payment %d is already settled", last.ID)
			}
			return newError(ErrNotFound, "no outstanding payment for %s", plate)
		}

		charge := params.Compute(start, now, pending.Discount)
		if err := s.ledger.settle(ctx, r.Payments, pending, charge.Amount, now); err != nil {
			return err
		}
		res = SettledPayment{
			PaymentID:    pending.ID,
			LicensePlate: v.LicensePlate,
			Amount:       pending.Amount,
			Discount:     pending.Discount,
			SettledAt:    now,
			EntryTime:    session.EntryTime,
			StartTime:    charge.StartTime,
			ParkedHours:  charge.ParkedHours,
		}
		return nil
	})
	if err != nil {
		s.recordConflict("settle", err)
		return nil, err
	}

	s.metrics.Settled(res.Amount)
	s.publisher.Publish(Event{Type: EventPaymentSettled, LicensePlate: res.LicensePlate, SessionID: sessionID, PaymentID: res.PaymentID, Amount: res.Amount, At: now})
	s.logger.Info("payment settled",
		zap.String("license_plate", res.LicensePlate),
		zap.Int64("payment_id", res.PaymentID),
		zap.Float64("amount", res.Amount),
		zap.Int("parked_hours", res.ParkedHours),
	)
	return &res, nil
}

// Close lets the vehicle out. Any charge that became due is recorded first; if money is
// owed the visit stays open and ErrPaymentRequired is returned. Otherwise the session is
// archived, its payments move to the archive and the session is removed atomically.
func (s *ParkingService) Close(ctx context.Context, plate string) (*ClosedVisit, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	if _, err := s.evaluate(ctx, plate, now); err != nil {
		return nil, err
	}

	var res ClosedVisit
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		v, session, err := openSession(ctx, r, plate, true)
		if err != nil {
			return err
		}
		params, err := s.config.paramsFrom(ctx, r.Configs)
		if err != nil {
			return err
		}
		eval, err := s.ledger.assess(ctx, r.Payments, session, now, params)
		if err != nil {
			return err
		}
		if err := checkoutBlocker(eval); err != nil {
			return err
		}

		archive := session.Archive(now)
		if err := r.Archives.Create(ctx, &archive); err != nil {
			return err
		}
		if _, err := r.Payments.Reparent(ctx, session.ID, archive.ID); err != nil {
			return err
		}
		if err := r.Sessions.Delete(ctx, session.ID); err != nil {
			return err
		}
		payments, err := r.Payments.ListByOwner(ctx, models.OwnedByArchive(archive.ID))
		if err != nil {
			return err
		}

		res = ClosedVisit{
			ArchivedSessionID: archive.ID,
			VehicleID:         v.ID,
			LicensePlate:      v.LicensePlate,
			EntryTime:         archive.EntryTime,
			ExitTime:          archive.ExitTime,
			Payments:          payments,
			TotalPaid:         totalPaid(payments),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPaymentRequired) {
			s.metrics.ExitRejected()
			s.logger.Info("exit refused", zap.String("license_plate", plate), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.Exited()
	s.evictVisit(ctx, res.LicensePlate)
	s.publisher.Publish(Event{Type: EventVehicleExited, LicensePlate: res.LicensePlate, ArchivedSessionID: res.ArchivedSessionID, Amount: res.TotalPaid, At: now})
	s.logger.Info("vehicle exited",
		zap.String("license_plate", res.LicensePlate),
		zap.Int64("archived_session_id", res.ArchivedSessionID),
		zap.Float64("total_paid", res.TotalPaid),
	)
	return &res, nil
}

// Visit is one open or completed visit with its payments.
type Visit struct {
	SessionID         int64                  `json:"session_id,omitempty"`
	ArchivedSessionID int64                  `json:"archived_session_id,omitempty"`
	EntryTime         time.Time              `json:"entry_time"`
	ExitTime          *time.Time             `json:"exit_time,omitempty"`
	Payments          []models.PaymentRecord `json:"payments"`
	TotalPaid         float64                `json:"total_paid"`
}

// HistorySummary totals a vehicle's payments across visits.
type HistorySummary struct {
	TotalVisits   int     `json:"total_visits"`
	TotalPayments int     `json:"total_payments"`
	TotalAmount   float64 `json:"total_amount"`
}

// PaymentHistory is returned by History.
type PaymentHistory struct {
	LicensePlate    string         `json:"license_plate"`
	IsVIP           bool           `json:"is_vip"`
	ActiveVisits    []Visit        `json:"active_visits"`
	CompletedVisits []Visit        `json:"completed_visits"`
	Summary         HistorySummary `json:"summary"`
}

// History lists every visit of a vehicle with its payments.
func (s *ParkingService) History(ctx context.Context, plate string) (*PaymentHistory, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	r := s.uow.Repos()

	v, err := r.Vehicles.FindByPlate(ctx, plate)
	if err != nil {
		return nil, vehicleNotFound(err, plate)
	}

	h := &PaymentHistory{
		LicensePlate:    v.LicensePlate,
		IsVIP:           v.IsVIP(s.clock.Now()),
		ActiveVisits:    []Visit{},
		CompletedVisits: []Visit{},
	}

	session, err := r.Sessions.FindOpenByVehicle(ctx, v.ID)
	switch {
	case err == nil:
		payments, err := r.Payments.ListByOwner(ctx, models.OwnedBySession(session.ID))
		if err != nil {
			return nil, err
		}
		h.ActiveVisits = append(h.ActiveVisits, Visit{
			SessionID: session.ID,
			EntryTime: session.EntryTime,
			Payments:  payments,
			TotalPaid: totalPaid(payments),
		})
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	archives, err := r.Archives.ListByVehicle(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range archives {
		payments, err := r.Payments.ListByOwner(ctx, models.OwnedByArchive(a.ID))
		if err != nil {
			return nil, err
		}
		exit := a.ExitTime
		h.CompletedVisits = append(h.CompletedVisits, Visit{
			ArchivedSessionID: a.ID,
			EntryTime:         a.EntryTime,
			ExitTime:          &exit,
			Payments:          payments,
			TotalPaid:         totalPaid(payments),
		})
	}

	for _, visits := range [][]Visit{h.ActiveVisits, h.CompletedVisits} {
		for _, visit := range visits {
			h.Summary.TotalVisits++
			for _, p := range visit.Payments {
				if p.Settled() {
					h.Summary.TotalPayments++
				}
			}
			h.Summary.TotalAmount += visit.TotalPaid
		}
	}
	return h, nil
}

func openSession(ctx context.Context, r Repos, plate string, lock bool) (*models.Vehicle, *models.Session, error) {
	v, err := r.Vehicles.FindByPlate(ctx, plate)
	if err != nil {
		return nil, nil, vehicleNotFound(err, plate)
	}
	find := r.Sessions.FindOpenByVehicle
	if lock {
		find = r.Sessions.LockOpenByVehicle
	}
	session, err := find(ctx, v.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, newError(ErrNotFound, "no open session for %s", plate)
		}
		return nil, nil, err
	}
	return v, session, nil
}

func vehicleNotFound(err error, plate string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, "vehicle %s not found", plate)
	}
	return err
}

func totalPaid(payments []models.PaymentRecord) float64 {
	var total float64
	for _, p := range payments {
		if p.Settled() {
			total += p.Amount
		}
	}
	return total
}

func (s *ParkingService) cacheVisit(ctx context.Context, visit redisstore.ActiveVisit) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, visit); err != nil {
		s.logger.Warn("failed to cache active visit", zap.String("license_plate", visit.LicensePlate), zap.Error(err))
	}
}

func (s *ParkingService) evictVisit(ctx context.Context, plate string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, plate); err != nil {
		s.logger.Warn("failed to evict active visit", zap.String("license_plate", plate), zap.Error(err))
	}
}

func (s *ParkingService) recordConflict(operation string, err error) {
	if errors.Is(err, ErrConflict) {
		s.metrics.Conflict(operation)
	}
}
