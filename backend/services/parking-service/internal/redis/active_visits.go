package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the plate has no cached visit.
var ErrMiss = errors.New("redisstore: cache miss")

// ActiveVisit is the cached view of an open session, keyed by plate.
type ActiveVisit struct {
	SessionID    int64     `json:"session_id"`
	VehicleID    int64     `json:"vehicle_id"`
	LicensePlate string    `json:"license_plate"`
	EntryTime    time.Time `json:"entry_time"`
	PhotoPath    string    `json:"photo_path,omitempty"`
}

// ActiveVisitStore caches open visits.
type ActiveVisitStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActiveVisitStore returns redis-backed store.
func NewActiveVisitStore(client *redis.Client, ttl time.Duration) *ActiveVisitStore {
	return &ActiveVisitStore{client: client, ttl: ttl}
}

func (s *ActiveVisitStore) key(plate string) string {
	return fmt.Sprintf("parking:active:%s", plate)
}

// Save caches visit.
func (s *ActiveVisitStore) Save(ctx context.Context, visit ActiveVisit) error {
	data, err := json.Marshal(visit)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(visit.LicensePlate), data, s.ttl).Err()
}

// Get returns the cached visit for plate.
func (s *ActiveVisitStore) Get(ctx context.Context, plate string) (*ActiveVisit, error) {
	result, err := s.client.Get(ctx, s.key(plate)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	var visit ActiveVisit
	if err := json.Unmarshal([]byte(result), &visit); err != nil {
		return nil, err
	}
	return &visit, nil
}

// Delete removes cached visit.
func (s *ActiveVisitStore) Delete(ctx context.Context, plate string) error {
	return s.client.Del(ctx, s.key(plate)).Err()
}
