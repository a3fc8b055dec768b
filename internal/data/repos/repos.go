package repos

import (
	"gorm.io/gorm"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos/catalog"
	"github.com/lifeapp/lifecycle-backend/internal/data/repos/lifecycle"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type ProductRepo = catalog.ProductRepo
type ProductScanRepo = catalog.ProductScanRepo

type LifecycleStepRepo = lifecycle.LifecycleStepRepo
type LifecycleSummaryRepo = lifecycle.LifecycleSummaryRepo
type Scope = lifecycle.Scope

func NewProductRepo(db *gorm.DB, log *logger.Logger) ProductRepo {
	return catalog.NewProductRepo(db, log)
}

func NewProductScanRepo(db *gorm.DB, log *logger.Logger) ProductScanRepo {
	return catalog.NewProductScanRepo(db, log)
}

func NewLifecycleStepRepo(db *gorm.DB, log *logger.Logger) LifecycleStepRepo {
	return lifecycle.NewLifecycleStepRepo(db, log)
}

func NewLifecycleSummaryRepo(db *gorm.DB, log *logger.Logger) LifecycleSummaryRepo {
	return lifecycle.NewLifecycleSummaryRepo(db, log)
}
