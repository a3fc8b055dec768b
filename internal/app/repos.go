package app

import (
	"gorm.io/gorm"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type Repos struct {
	Product          repos.ProductRepo
	ProductScan      repos.ProductScanRepo
	LifecycleStep    repos.LifecycleStepRepo
	LifecycleSummary repos.LifecycleSummaryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Product:          repos.NewProductRepo(db, log),
		ProductScan:      repos.NewProductScanRepo(db, log),
		LifecycleStep:    repos.NewLifecycleStepRepo(db, log),
		LifecycleSummary: repos.NewLifecycleSummaryRepo(db, log),
	}
}
