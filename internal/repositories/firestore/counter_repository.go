package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/customiseme/storefront-api/internal/platform/firestore"
	"github.com/customiseme/storefront-api/internal/repositories"
)

const countersCollection = "counters"

type counterDocument struct {
	Count     int64     `firestore:"count"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CounterRepository implements repositories.CounterRepository backed by
// Firestore transactions. Concurrent increments retry on contention, so two
// allocations never observe the same value.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection, nil),
	}, nil
}

// Next atomically increments the counter identified by counterID and returns
// the new value. A missing counter document starts at 1.
func (r *CounterRepository) Next(ctx context.Context, counterID string) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}

	var nextValue int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		value, err := r.NextInTx(ctx, tx, counterID)
		if err != nil {
			return err
		}
		nextValue = value
		return nil
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return nextValue, nil
}

// NextInTx increments the counter as part of an enclosing transaction, which
// lets callers couple the allocated value to other writes atomically.
func (r *CounterRepository) NextInTx(ctx context.Context, tx *firestore.Transaction, counterID string) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	if tx == nil {
		return 0, errors.New("counter repository requires a transaction")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	ref, err := r.counters.DocumentRef(ctx, id)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()

	snapshot, err := tx.Get(ref)
	switch status.Code(err) {
	case codes.NotFound:
		doc := counterDocument{Count: 1, UpdatedAt: now}
		if err := tx.Create(ref, doc); err != nil {
			return 0, err
		}
		return doc.Count, nil
	case codes.OK:
		// proceed
	default:
		return 0, err
	}

	var doc counterDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return 0, fmt.Errorf("firestore counters decode %s: %w", id, err)
	}

	doc.Count++
	doc.UpdatedAt = now
	if err := tx.Set(ref, doc); err != nil {
		return 0, err
	}
	return doc.Count, nil
}
