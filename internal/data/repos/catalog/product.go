package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type ProductRepo interface {
	Create(dbc dbctx.Context, p *types.Product) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Product, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error)
	Save(dbc dbctx.Context, p *types.Product) error
	IncrementScanCount(dbc dbctx.Context, id uuid.UUID) error
	// ListEmbedded pages products embedded with model, ordered by id, starting after afterID.
	ListEmbedded(dbc dbctx.Context, model string, afterID uuid.UUID, limit int) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (r *productRepo) Create(dbc dbctx.Context, p *types.Product) error {
	if p == nil {
		return fmt.Errorf("nil product")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(p).Error
}

func (r *productRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing product id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Product
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *productRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Product, error) {
	var out []*types.Product
	if len(ids) == 0 {
		return out, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing product id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.Product
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *productRepo) Save(dbc dbctx.Context, p *types.Product) error {
	if p == nil || p.ID == uuid.Nil {
		return fmt.Errorf("missing product id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	p.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).Save(p).Error
}

// IncrementScanCount is a single UPDATE so concurrent rescans never lose a count.
func (r *productRepo) IncrementScanCount(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing product id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"scan_count": gorm.Expr("scan_count + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) ListEmbedded(dbc dbctx.Context, model string, afterID uuid.UUID, limit int) ([]*types.Product, error) {
	if limit <= 0 {
		limit = 500
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.Product{}).
		Where("name_embedding IS NOT NULL AND description_embedding IS NOT NULL").
		Where("embedding_model = ?", model)
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	var out []*types.Product
	if err := q.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
