package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type LifecycleSummaryRepo interface {
	// Create inserts s unless the scope already has a summary ending at the same
	// step count. It reports whether a row was written.
	Create(dbc dbctx.Context, s *types.LifecycleSummary) (bool, error)
	GetByEnd(dbc dbctx.Context, scopeKey string, end int) (*types.LifecycleSummary, error)
	GetLatest(dbc dbctx.Context, scopeKey string) (*types.LifecycleSummary, error)
	// GetPrevious returns the summary with the highest end strictly below start.
	GetPrevious(dbc dbctx.Context, scopeKey string, start int) (*types.LifecycleSummary, error)
	// FindOverlapping returns a summary intersecting [start, end], if any.
	FindOverlapping(dbc dbctx.Context, scopeKey string, start, end int) (*types.LifecycleSummary, error)
	ListByScope(dbc dbctx.Context, scopeKey string) ([]*types.LifecycleSummary, error)
	DeleteByScope(dbc dbctx.Context, scopeKey string) (int64, error)
}

type lifecycleSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLifecycleSummaryRepo(db *gorm.DB, baseLog *logger.Logger) LifecycleSummaryRepo {
	return &lifecycleSummaryRepo{db: db, log: baseLog.With("repo", "LifecycleSummaryRepo")}
}

func (r *lifecycleSummaryRepo) Create(dbc dbctx.Context, s *types.LifecycleSummary) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("nil summary")
	}
	if s.ProductID == uuid.Nil || strings.TrimSpace(s.ScopeKey) == "" {
		return false, fmt.Errorf("summary missing product_id or scope_key")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_key"}, {Name: "step_count_end"}},
			DoNothing: true,
		}).
		Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *lifecycleSummaryRepo) first(dbc dbctx.Context, q func(*gorm.DB) *gorm.DB) (*types.LifecycleSummary, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.LifecycleSummary
	err := q(transaction.WithContext(dbc.Ctx).Model(&types.LifecycleSummary{})).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *lifecycleSummaryRepo) GetByEnd(dbc dbctx.Context, scopeKey string, end int) (*types.LifecycleSummary, error) {
	return r.first(dbc, func(q *gorm.DB) *gorm.DB {
		return q.Where("scope_key = ? AND step_count_end = ?", scopeKey, end)
	})
}

func (r *lifecycleSummaryRepo) GetLatest(dbc dbctx.Context, scopeKey string) (*types.LifecycleSummary, error) {
	return r.first(dbc, func(q *gorm.DB) *gorm.DB {
		return q.Where("scope_key = ?", scopeKey).Order("step_count_end DESC").Limit(1)
	})
}

func (r *lifecycleSummaryRepo) GetPrevious(dbc dbctx.Context, scopeKey string, start int) (*types.LifecycleSummary, error) {
	return r.first(dbc, func(q *gorm.DB) *gorm.DB {
		return q.Where("scope_key = ? AND step_count_end < ?", scopeKey, start).
			Order("step_count_end DESC").
			Limit(1)
	})
}

func (r *lifecycleSummaryRepo) FindOverlapping(dbc dbctx.Context, scopeKey string, start, end int) (*types.LifecycleSummary, error) {
	return r.first(dbc, func(q *gorm.DB) *gorm.DB {
		return q.Where("scope_key = ? AND step_count_start <= ? AND step_count_end >= ?", scopeKey, end, start).
			Order("step_count_end ASC").
			Limit(1)
	})
}

func (r *lifecycleSummaryRepo) ListByScope(dbc dbctx.Context, scopeKey string) ([]*types.LifecycleSummary, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LifecycleSummary
	if err := transaction.WithContext(dbc.Ctx).
		Where("scope_key = ?", scopeKey).
		Order("step_count_end ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lifecycleSummaryRepo) DeleteByScope(dbc dbctx.Context, scopeKey string) (int64, error) {
	if strings.TrimSpace(scopeKey) == "" {
		return 0, fmt.Errorf("missing scope key")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("scope_key = ?", scopeKey).
		Delete(&types.LifecycleSummary{})
	return res.RowsAffected, res.Error
}
