package lifecycle

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

// Scope selects the steps of a product, optionally narrowed to one user.
type Scope struct {
	ProductID uuid.UUID
	UserID    *uuid.UUID
}

func (s Scope) Key() string { return types.ScopeKey(s.ProductID, s.UserID) }

// Positions are 1-based ranks among the scope's visible steps ordered by seq.
type LifecycleStepRepo interface {
	Create(dbc dbctx.Context, s *types.LifecycleStep) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LifecycleStep, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.LifecycleStep, error)
	SetVisibility(dbc dbctx.Context, id uuid.UUID, visible bool) error

	CountVisible(dbc dbctx.Context, scope Scope) (int, error)
	// CountVisibleBefore counts visible steps of scope with seq < seq.
	CountVisibleBefore(dbc dbctx.Context, scope Scope, seq int64) (int, error)
	// ListVisibleRange loads the steps at positions [start, end].
	ListVisibleRange(dbc dbctx.Context, scope Scope, start, end int) ([]*types.LifecycleStep, error)
	// ListVisibleAfter loads every step at a position greater than position.
	ListVisibleAfter(dbc dbctx.Context, scope Scope, position int) ([]*types.LifecycleStep, error)
	// ListScopes returns each distinct (product, user) pair that has visible steps.
	// Steps without a user yield the product-wide scope.
	ListScopes(dbc dbctx.Context, limit int) ([]Scope, error)
}

type lifecycleStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLifecycleStepRepo(db *gorm.DB, baseLog *logger.Logger) LifecycleStepRepo {
	return &lifecycleStepRepo{db: db, log: baseLog.With("repo", "LifecycleStepRepo")}
}

func (r *lifecycleStepRepo) Create(dbc dbctx.Context, s *types.LifecycleStep) error {
	if s == nil {
		return fmt.Errorf("nil step")
	}
	if s.ProductID == uuid.Nil || s.Seq <= 0 {
		return fmt.Errorf("step missing product_id or seq")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(s).Error
}

func (r *lifecycleStepRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LifecycleStep, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing step id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.LifecycleStep
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *lifecycleStepRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.LifecycleStep, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing step id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.LifecycleStep
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *lifecycleStepRepo) SetVisibility(dbc dbctx.Context, id uuid.UUID, visible bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LifecycleStep{}).
		Where("id = ?", id).
		Update("is_visible", visible)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *lifecycleStepRepo) scoped(dbc dbctx.Context, scope Scope) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.LifecycleStep{}).
		Where("product_id = ? AND is_visible = ?", scope.ProductID, true)
	if scope.UserID != nil && *scope.UserID != uuid.Nil {
		q = q.Where("user_id = ?", *scope.UserID)
	}
	return q
}

func (r *lifecycleStepRepo) CountVisible(dbc dbctx.Context, scope Scope) (int, error) {
	if scope.ProductID == uuid.Nil {
		return 0, fmt.Errorf("missing product id")
	}
	var n int64
	if err := r.scoped(dbc, scope).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *lifecycleStepRepo) CountVisibleBefore(dbc dbctx.Context, scope Scope, seq int64) (int, error) {
	if scope.ProductID == uuid.Nil {
		return 0, fmt.Errorf("missing product id")
	}
	var n int64
	if err := r.scoped(dbc, scope).Where("seq < ?", seq).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *lifecycleStepRepo) ListVisibleRange(dbc dbctx.Context, scope Scope, start, end int) ([]*types.LifecycleStep, error) {
	if scope.ProductID == uuid.Nil {
		return nil, fmt.Errorf("missing product id")
	}
	if start < 1 {
		start = 1
	}
	var out []*types.LifecycleStep
	if end < start {
		return out, nil
	}
	if err := r.scoped(dbc, scope).
		Order("seq ASC").
		Offset(start - 1).
		Limit(end - start + 1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lifecycleStepRepo) ListVisibleAfter(dbc dbctx.Context, scope Scope, position int) ([]*types.LifecycleStep, error) {
	if scope.ProductID == uuid.Nil {
		return nil, fmt.Errorf("missing product id")
	}
	if position < 0 {
		position = 0
	}
	var out []*types.LifecycleStep
	q := r.scoped(dbc, scope).Order("seq ASC")
	if position > 0 {
		q = q.Offset(position)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lifecycleStepRepo) ListScopes(dbc dbctx.Context, limit int) ([]Scope, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		ProductID uuid.UUID
		UserID    *uuid.UUID
	}
	var rows []row
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.LifecycleStep{}).
		Select("product_id, user_id").
		Where("is_visible = ?", true).
		Group("product_id, user_id").
		Order("product_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Scope, 0, len(rows))
	for _, rw := range rows {
		out = append(out, Scope{ProductID: rw.ProductID, UserID: rw.UserID})
	}
	return out, nil
}
