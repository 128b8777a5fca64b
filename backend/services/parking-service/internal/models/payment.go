package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OwnerKind tells which kind of visit a payment belongs to.
type OwnerKind uint8

const (
	OwnerSession OwnerKind = iota + 1
	OwnerArchive
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerSession:
		return "session"
	case OwnerArchive:
		return "archived_session"
	default:
		return "unknown"
	}
}

// Owner references the single visit a payment belongs to: an open Session or an
// ArchivedSession, never both. Build it with OwnedBySession or OwnedByArchive.
type Owner struct {
	kind OwnerKind
	id   int64
}

// OwnedBySession references an open session.
func OwnedBySession(id int64) Owner { return Owner{kind: OwnerSession, id: id} }

// OwnedByArchive references an archived session.
func OwnedByArchive(id int64) Owner { return Owner{kind: OwnerArchive, id: id} }

func (o Owner) Kind() OwnerKind { return o.kind }
func (o Owner) ID() int64       { return o.id }
func (o Owner) IsZero() bool    { return o.kind == 0 }

// SessionID returns the open session id when o points at one.
func (o Owner) SessionID() (int64, bool) {
	return o.id, o.kind == OwnerSession
}

// ArchiveID returns the archived session id when o points at one.
func (o Owner) ArchiveID() (int64, bool) {
	return o.id, o.kind == OwnerArchive
}

func (o Owner) String() string {
	return fmt.Sprintf("%s:%d", o.kind, o.id)
}

// MarshalJSON renders the owner as {"type": "...", "id": N}.
func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		ID   int64  `json:"id"`
	}{Type: o.kind.String(), ID: o.id})
}

// PaymentRecord is one billing instance of a visit. SettledAt nil means unsettled.
type PaymentRecord struct {
	ID        int64      `json:"id"`
	Owner     Owner      `json:"owner"`
	Amount    float64    `json:"amount"`
	Discount  float64    `json:"discount"`
	SettledAt *time.Time `json:"settled_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Settled reports whether the record has been paid.
func (p *PaymentRecord) Settled() bool {
	return p != nil && p.SettledAt != nil
}
