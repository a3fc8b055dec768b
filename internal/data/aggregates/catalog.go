package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

type CatalogAggregateDeps struct {
	Base BaseDeps

	Products repos.ProductRepo
	Scans    repos.ProductScanRepo
}

type catalogAggregate struct {
	deps CatalogAggregateDeps
}

func NewCatalogAggregate(deps CatalogAggregateDeps) domainagg.CatalogAggregate {
	deps.Base = deps.Base.withDefaults()
	return &catalogAggregate{deps: deps}
}

func (a *catalogAggregate) Contract() domainagg.Contract {
	return domainagg.CatalogAggregateContract
}

func (a *catalogAggregate) configured(op string) error {
	if a.deps.Products == nil || a.deps.Scans == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "catalog aggregate repos not configured", nil)
	}
	return nil
}

func validateScan(op string, scan *types.ProductScan) error {
	if scan == nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing scan", nil)
	}
	if strings.TrimSpace(scan.ContentHash) == "" {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing content_hash", nil)
	}
	return nil
}

func (a *catalogAggregate) CreateProduct(ctx context.Context, in domainagg.CreateProductInput) (domainagg.CreateProductResult, error) {
	const op = "Catalog.Product.Create"
	var out domainagg.CreateProductResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.Product == nil || strings.TrimSpace(in.Product.CanonicalName) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing canonical_name", nil)
	}
	if err := validateScan(op, in.Scan); err != nil {
		return out, err
	}
	if in.Product.ScanCount < 1 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "scan_count must start at 1", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if in.Product.ID == uuid.Nil {
			in.Product.ID = uuid.New()
		}
		if err := a.deps.Products.Create(dbc, in.Product); err != nil {
			return err
		}
		in.Scan.ProductID = in.Product.ID
		if err := a.deps.Scans.Create(dbc, in.Scan); err != nil {
			return err
		}
		out = domainagg.CreateProductResult{Product: in.Product, Scan: in.Scan}
		return nil
	})
	return out, err
}

func (a *catalogAggregate) MergeScan(ctx context.Context, in domainagg.MergeScanInput) (domainagg.MergeScanResult, error) {
	const op = "Catalog.Product.MergeScan"
	var out domainagg.MergeScanResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.ProductID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	if in.Merge == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing merge func", nil)
	}
	if err := validateScan(op, in.Scan); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.deps.Products.LockByID(dbc, in.ProductID)
		if err != nil {
			return err
		}
		before := p.ScanCount
		if err := in.Merge(p); err != nil {
			return err
		}
		if p.ID != in.ProductID {
			return InvariantError("merge changed product id")
		}
		if p.ScanCount != before+1 {
			return InvariantError(fmt.Sprintf("merge must increment scan_count by one: before=%d after=%d", before, p.ScanCount))
		}
		if err := a.deps.Products.Save(dbc, p); err != nil {
			return err
		}
		in.Scan.ProductID = p.ID
		if err := a.deps.Scans.Create(dbc, in.Scan); err != nil {
			return err
		}
		out = domainagg.MergeScanResult{Product: p, Scan: in.Scan}
		return nil
	})
	return out, err
}

func (a *catalogAggregate) Rescan(ctx context.Context, productID uuid.UUID) (*types.Product, error) {
	const op = "Catalog.Product.Rescan"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	var out *types.Product
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Products.IncrementScanCount(dbc, productID); err != nil {
			return err
		}
		p, err := a.deps.Products.GetByID(dbc, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "product not found: "+productID.String(), nil)
		}
		out = p
		return nil
	})
	return out, err
}
