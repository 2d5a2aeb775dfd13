// Package cloudsync mirrors the itinerary to a per-user remote record.
package cloudsync

import (
	"context"
	"errors"
	"time"

	"tripcal/internal/model"
)

// ErrNoRecord is returned by Remote.Load when the user has no saved record.
var ErrNoRecord = errors.New("no remote record")

// Record is the stored row: one itinerary per user, last write wins.
type Record struct {
	UserID    string           `json:"user_id" bson:"user_id"`
	Data      *model.Itinerary `json:"data" bson:"data"`
	UpdatedAt time.Time        `json:"updated_at" bson:"updated_at"`
}

// Remote is a store of per-user records.
type Remote interface {
	Load(ctx context.Context, userID string) (Record, error)
	Save(ctx context.Context, rec Record) error
}
