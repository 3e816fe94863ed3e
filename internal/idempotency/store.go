// Package idempotency implements the Idempotency Store (§4.3): a durable
// gate that makes POST /v1/orders safely retryable under the same
// client-supplied key.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Outcome is the result of Acquire (§4.3).
type Outcome int

const (
	// OutcomeCreated: no prior record existed; a new pending record was
	// stored and the caller should proceed with the operation.
	OutcomeCreated Outcome = iota
	// OutcomeReplay: a finalized record exists; ResponseStatus and
	// ResponseBody carry its stored response, and the operation is not re-run.
	OutcomeReplay
	// OutcomeConflict: a pending or failed record exists; the caller
	// should reject with 409 (§6, §7).
	OutcomeConflict
)

// AcquireResult is returned by Acquire.
type AcquireResult struct {
	Outcome        Outcome
	ResponseStatus int
	ResponseBody   string
}

// Record is the persisted idempotency record (§3).
type Record struct {
	Key             string
	ResourcePath    string
	RequestBodyHash string
	ResponseStatus  *int
	ResponseBody    *string
	CreatedAt       time.Time
}

// IsPending reports whether the record has not yet been finalized.
func (r *Record) IsPending() bool {
	return r.ResponseStatus == nil
}

// Store is the Idempotency Store's contract.
type Store interface {
	// Acquire inserts a pending record for key if none exists, or
	// classifies the existing one as a replay or a conflict (§4.3).
	Acquire(ctx context.Context, key, resourcePath, bodyHash string) (AcquireResult, error)
	// Finalize transitions a pending record to finalized exactly once.
	// Repeated finalization on an already-finalized record returns
	// ErrAlreadyFinalized — logged by the caller, never fatal (§4.3).
	Finalize(ctx context.Context, key string, status int, body string) error
}

// ErrAlreadyFinalized is returned by Finalize when the record was already
// finalized by a previous call.
var ErrAlreadyFinalized = errors.New("idempotency: запись уже финализирована")

// recordModel is the GORM model for the idempotency_records table.
type recordModel struct {
	Key             string    `gorm:"column:idempotency_key;type:varchar(64);primaryKey"`
	ResourcePath    string    `gorm:"column:resource_path;type:varchar(255);not null"`
	RequestBodyHash string    `gorm:"column:request_body_hash;type:char(64);not null"`
	ResponseStatus  *int      `gorm:"column:response_status"`
	ResponseBody    *string   `gorm:"column:response_body;type:longtext"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (recordModel) TableName() string { return "idempotency_records" }

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Acquire implements §4.3's Acquire contract: it first attempts to insert a
// pending record; a unique-key violation means a record already exists, and
// it is re-read to classify replay vs conflict.
func (s *gormStore) Acquire(ctx context.Context, key, resourcePath, bodyHash string) (AcquireResult, error) {
	model := recordModel{
		Key:             key,
		ResourcePath:    resourcePath,
		RequestBodyHash: bodyHash,
	}

	err := s.db.WithContext(ctx).Create(&model).Error
	if err == nil {
		return AcquireResult{Outcome: OutcomeCreated}, nil
	}
	if !isDuplicateKeyError(err) {
		return AcquireResult{}, err
	}

	var existing recordModel
	if err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&existing).Error; err != nil {
		return AcquireResult{}, err
	}

	if existing.ResponseStatus == nil {
		return AcquireResult{Outcome: OutcomeConflict}, nil
	}
	if *existing.ResponseStatus < 200 || *existing.ResponseStatus >= 300 {
		return AcquireResult{Outcome: OutcomeConflict}, nil
	}

	body := ""
	if existing.ResponseBody != nil {
		body = *existing.ResponseBody
	}
	return AcquireResult{Outcome: OutcomeReplay, ResponseStatus: *existing.ResponseStatus, ResponseBody: body}, nil
}

// Finalize sets the response status/body on a pending record. It is a
// conditional UPDATE ... WHERE response_status IS NULL so a second
// finalization attempt affects zero rows instead of overwriting history.
func (s *gormStore) Finalize(ctx context.Context, key string, status int, body string) error {
	result := s.db.WithContext(ctx).
		Model(&recordModel{}).
		Where("idempotency_key = ? AND response_status IS NULL", key).
		Updates(map[string]interface{}{
			"response_status": status,
			"response_body":   body,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}
