package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"parkwise/backend/services/parking-service/internal/models"
	"parkwise/backend/services/parking-service/internal/repository"
)

// memStore is a transactional in-memory UnitOfWork enforcing the same uniqueness rules
// as the Postgres schema. Transactions are serialized.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   memState
	fail map[string]error
}

type memState struct {
	nextID   int64
	vehicles map[int64]models.Vehicle
	sessions map[int64]models.Session
	archives map[int64]models.ArchivedSession
	payments map[int64]models.PaymentRecord
	configs  []models.BillingConfig
}

func newMemStore() *memStore {
	return &memStore{
		st: memState{
			vehicles: map[int64]models.Vehicle{},
			sessions: map[int64]models.Session{},
			archives: map[int64]models.ArchivedSession{},
			payments: map[int64]models.PaymentRecord{},
		},
		fail: map[string]error{},
	}
}

func (s memState) clone() memState {
	c := memState{
		nextID:   s.nextID,
		vehicles: make(map[int64]models.Vehicle, len(s.vehicles)),
		sessions: make(map[int64]models.Session, len(s.sessions)),
		archives: make(map[int64]models.ArchivedSession, len(s.archives)),
		payments: make(map[int64]models.PaymentRecord, len(s.payments)),
		configs:  append([]models.BillingConfig(nil), s.configs...),
	}
	for k, v := range s.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.archives {
		c.archives[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

func (m *memStore) Repos() Repos {
	return Repos{
		Vehicles: memVehicles{m},
		Sessions: memSessions{m},
		Archives: memArchives{m},
		Payments: memPayments{m},
		Configs:  memConfigs{m},
	}
}

func (m *memStore) WithinTx(_ context.Context, fn func(Repos) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(m.Repos()); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// failOn makes the next call of op return err.
func (m *memStore) failOn(op string, err error) {
	m.mu.Lock()
	m.fail[op] = err
	m.mu.Unlock()
}

// injected must be called with mu held.
func (m *memStore) injected(op string) error {
	err, ok := m.fail[op]
	if !ok {
		return nil
	}
	delete(m.fail, op)
	return err
}

func (m *memStore) id() int64 {
	m.st.nextID++
	return m.st.nextID
}

func (m *memStore) addVehicle(plate string, vipUntil *time.Time) models.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := models.Vehicle{ID: m.id(), LicensePlate: plate, VIPExpiresAt: vipUntil}
	m.st.vehicles[v.ID] = v
	return v
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clone()
}

func (s memState) paymentsOf(owner models.Owner) []models.PaymentRecord {
	var out []models.PaymentRecord
	for _, p := range s.payments {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memVehicles struct{ m *memStore }

func (r memVehicles) Ensure(_ context.Context, plate string) (*models.Vehicle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("vehicles.ensure"); err != nil {
		return nil, err
	}
	for _, v := range r.m.st.vehicles {
		if v.LicensePlate == plate {
			return &v, nil
		}
	}
	v := models.Vehicle{ID: r.m.id(), LicensePlate: plate}
	r.m.st.vehicles[v.ID] = v
	return &v, nil
}

func (r memVehicles) FindByPlate(_ context.Context, plate string) (*models.Vehicle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.st.vehicles {
		if v.LicensePlate == plate {
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memSessions struct{ m *memStore }

func (r memSessions) Create(_ context.Context, s *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.st.sessions {
		if existing.VehicleID == s.VehicleID {
			return repository.ErrDuplicate
		}
	}
	s.ID = r.m.id()
	r.m.st.sessions[s.ID] = *s
	return nil
}

func (r memSessions) FindOpenByVehicle(_ context.Context, vehicleID int64) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.st.sessions {
		if s.VehicleID == vehicleID {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memSessions) LockOpenByVehicle(ctx context.Context, vehicleID int64) (*models.Session, error) {
	return r.FindOpenByVehicle(ctx, vehicleID)
}

func (r memSessions) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("sessions.delete"); err != nil {
		return err
	}
	if _, ok := r.m.st.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	if len(r.m.st.paymentsOf(models.OwnedBySession(id))) > 0 {
		return errors.New("payments still reference session")
	}
	delete(r.m.st.sessions, id)
	return nil
}

func (r memSessions) List(_ context.Context, opts repository.ListOptions) ([]models.SessionDetail, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []models.SessionDetail
	for _, s := range r.m.st.sessions {
		all = append(all, models.SessionDetail{Session: s, Vehicle: r.m.st.vehicles[s.VehicleID]})
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Session, all[j].Session
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime) != opts.Desc
		}
		return (a.ID < b.ID) != opts.Desc
	})
	return window(all, opts), len(all), nil
}

type memArchives struct{ m *memStore }

func (r memArchives) Create(_ context.Context, a *models.ArchivedSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("archives.create"); err != nil {
		return err
	}
	if a.ExitTime.Before(a.EntryTime) {
		return errors.New("exit before entry")
	}
	a.ID = r.m.id()
	r.m.st.archives[a.ID] = *a
	return nil
}

func (r memArchives) ListByVehicle(_ context.Context, vehicleID int64) ([]models.ArchivedSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.ArchivedSession
	for _, a := range r.m.st.archives {
		if a.VehicleID == vehicleID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExitTime.Equal(out[j].ExitTime) {
			return out[i].ExitTime.After(out[j].ExitTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memArchives) List(_ context.Context, opts repository.ListOptions) ([]models.ArchiveDetail, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []models.ArchiveDetail
	for _, a := range r.m.st.archives {
		all = append(all, models.ArchiveDetail{Archive: a, Vehicle: r.m.st.vehicles[a.VehicleID]})
	}
	key := func(a models.ArchivedSession) time.Time {
		if opts.SortByExit {
			return a.ExitTime
		}
		return a.EntryTime
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Archive, all[j].Archive
		if !key(a).Equal(key(b)) {
			return key(a).Before(key(b)) != opts.Desc
		}
		return (a.ID < b.ID) != opts.Desc
	})
	return window(all, opts), len(all), nil
}

type memPayments struct{ m *memStore }

func (r memPayments) Create(_ context.Context, p *models.PaymentRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.Owner.IsZero() {
		return errors.New("payment without owner")
	}
	if sessionID, ok := p.Owner.SessionID(); ok && p.SettledAt == nil {
		if _, err := r.m.unsettled(sessionID); err == nil {
			return repository.ErrDuplicate
		}
	}
	p.ID = r.m.id()
	r.m.st.payments[p.ID] = *p
	return nil
}

func (r memPayments) Settle(_ context.Context, id int64, amount float64, settledAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.st.payments[id]
	if _, open := p.Owner.SessionID(); !ok || !open || p.SettledAt != nil {
		return repository.ErrAlreadySettled
	}
	p.Amount = amount
	p.SettledAt = &settledAt
	r.m.st.payments[id] = p
	return nil
}

func (m *memStore) unsettled(sessionID int64) (*models.PaymentRecord, error) {
	for _, p := range m.st.paymentsOf(models.OwnedBySession(sessionID)) {
		if p.SettledAt == nil {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memPayments) FindUnsettled(_ context.Context, sessionID int64) (*models.PaymentRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.unsettled(sessionID)
}

func (r memPayments) LatestSettled(_ context.Context, sessionID int64) (*models.PaymentRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var latest *models.PaymentRecord
	for _, p := range r.m.st.paymentsOf(models.OwnedBySession(sessionID)) {
		if p.SettledAt == nil {
			continue
		}
		if latest == nil || !p.SettledAt.Before(*latest.SettledAt) {
			p := p
			latest = &p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r memPayments) ListByOwner(_ context.Context, owner models.Owner) ([]models.PaymentRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := r.m.st.paymentsOf(owner)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SettledAt, out[j].SettledAt
		switch {
		case a == nil && b == nil:
			return out[i].ID > out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return out[i].ID > out[j].ID
		}
	})
	return out, nil
}

func (r memPayments) Reparent(_ context.Context, sessionID, archiveID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.injected("payments.reparent"); err != nil {
		return 0, err
	}
	var n int64
	for _, p := range r.m.st.paymentsOf(models.OwnedBySession(sessionID)) {
		p.Owner = models.OwnedByArchive(archiveID)
		r.m.st.payments[p.ID] = p
		n++
	}
	return n, nil
}

type memConfigs struct{ m *memStore }

func (r memConfigs) Latest(context.Context) (*models.BillingConfig, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if len(r.m.st.configs) == 0 {
		return nil, repository.ErrNotFound
	}
	c := r.m.st.configs[len(r.m.st.configs)-1]
	return &c, nil
}

func (r memConfigs) Create(_ context.Context, c *models.BillingConfig) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.ID = r.m.id()
	r.m.st.configs = append(r.m.st.configs, *c)
	return nil
}

func window[T any](all []T, opts repository.ListOptions) []T {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	start := min(max(opts.Offset, 0), len(all))
	end := min(start+limit, len(all))
	return all[start:end]
}
