package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type ProductScanRepo interface {
	// Create fails with a unique violation when the content hash was already recorded.
	Create(dbc dbctx.Context, s *types.ProductScan) error
	GetByContentHash(dbc dbctx.Context, hash string) (*types.ProductScan, error)
	ListByProduct(dbc dbctx.Context, productID uuid.UUID, limit int) ([]*types.ProductScan, error)
}

type productScanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductScanRepo(db *gorm.DB, baseLog *logger.Logger) ProductScanRepo {
	return &productScanRepo{db: db, log: baseLog.With("repo", "ProductScanRepo")}
}

func (r *productScanRepo) Create(dbc dbctx.Context, s *types.ProductScan) error {
	if s == nil {
		return fmt.Errorf("nil scan")
	}
	if s.ProductID == uuid.Nil {
		return fmt.Errorf("scan missing product_id")
	}
	if strings.TrimSpace(s.ContentHash) == "" {
		return fmt.Errorf("scan missing content_hash")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(s).Error
}

func (r *productScanRepo) GetByContentHash(dbc dbctx.Context, hash string) (*types.ProductScan, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, fmt.Errorf("missing content hash")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.ProductScan
	err := transaction.WithContext(dbc.Ctx).Where("content_hash = ?", hash).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *productScanRepo) ListByProduct(dbc dbctx.Context, productID uuid.UUID, limit int) ([]*types.ProductScan, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("missing product id")
	}
	if limit <= 0 {
		limit = 100
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProductScan
	if err := transaction.WithContext(dbc.Ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
