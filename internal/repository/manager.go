package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "userapi/internal/errors"
)

// DefaultOpTimeout bounds a single persistence call when no timeout is configured.
const DefaultOpTimeout = 5 * time.Second

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = fmt.Errorf("%w: duplicate key", apperrors.ErrValidation)

// Patch holds the columns an update writes. Columns absent from the map are left untouched.
type Patch map[string]any

// CRUD is the create/read/update/delete contract shared by every entity repository.
type CRUD[T any] interface {
	// Get returns nil, nil when no row has the id.
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, entity *T) (*T, error)
	// Update returns nil, nil when no row has the id.
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Manager is a GORM-backed CRUD over one entity type keyed by a uuid "id" column.
type Manager[T any] struct {
	db      *gorm.DB
	timeout time.Duration
	orderBy string
}

var _ CRUD[struct{}] = (*Manager[struct{}])(nil)

// NewManager builds a manager. List orders by creation time.
func NewManager[T any](db *gorm.DB, timeout time.Duration) *Manager[T] {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &Manager[T]{db: db, timeout: timeout, orderBy: "created_at ASC, id ASC"}
}

func (m *Manager[T]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// Get finds an entity by ID.
func (m *Manager[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	var entity T
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(ctx, err)
	}
	return &entity, nil
}

// List returns every entity in insertion order.
func (m *Manager[T]) List(ctx context.Context) ([]T, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	var entities []T
	if err := m.db.WithContext(ctx).Order(m.orderBy).Find(&entities).Error; err != nil {
		return nil, translate(ctx, err)
	}
	return entities, nil
}

// Create persists the entity and returns it with generated fields populated.
func (m *Manager[T]) Create(ctx context.Context, entity *T) (*T, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entity).Error
	})
	if err != nil {
		return nil, translate(ctx, err)
	}
	return entity, nil
}

// Update writes only the patched columns and returns the stored entity.
func (m *Manager[T]) Update(ctx context.Context, id uuid.UUID, patch Patch) (*T, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	var (
		entity T
		found  = true
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				found = false
				return nil
			}
			return err
		}
		if len(patch) > 0 {
			if err := tx.Model(&entity).Updates(map[string]any(patch)).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).First(&entity).Error
	})
	if err != nil {
		return nil, translate(ctx, err)
	}
	if !found {
		return nil, nil
	}
	return &entity, nil
}

// Delete removes the entity and reports whether a row existed.
func (m *Manager[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	res := m.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return false, translate(ctx, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Transaction runs fn inside a single database transaction.
func (m *Manager[T]) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
	return translate(ctx, err)
}

// translate maps driver level failures onto the application error taxonomy.
func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, err)
	}
	var netErr net.Error
	switch {
	case errors.Is(err, apperrors.ErrServiceUnavailable), errors.Is(err, apperrors.ErrValidation):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, err)
	default:
		return err
	}
}
