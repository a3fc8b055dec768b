package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/domain/catalog"
)

var CatalogAggregateContract = Contract{
	Name:             "Catalog.ProductAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns atomic product create/merge together with the provenance scan row.",
}

// CatalogAggregate owns canonical product mutations.
//
// Write failures return *Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
// A duplicate content hash surfaces as CodeConflict.
type CatalogAggregate interface {
	Aggregate

	// CreateProduct inserts a new canonical product and its first scan.
	CreateProduct(ctx context.Context, in CreateProductInput) (CreateProductResult, error)

	// MergeScan locks the product, applies Merge to it, saves it and records the scan.
	MergeScan(ctx context.Context, in MergeScanInput) (MergeScanResult, error)

	// Rescan increments the scan count of a product whose content was already seen.
	Rescan(ctx context.Context, productID uuid.UUID) (*catalog.Product, error)
}

type CreateProductInput struct {
	Product *catalog.Product
	Scan    *catalog.ProductScan
}

type CreateProductResult struct {
	Product *catalog.Product
	Scan    *catalog.ProductScan
}

// MergeFunc mutates the locked product in place. Returning an error aborts the merge.
type MergeFunc func(p *catalog.Product) error

type MergeScanInput struct {
	ProductID uuid.UUID
	Scan      *catalog.ProductScan
	Merge     MergeFunc
}

type MergeScanResult struct {
	Product *catalog.Product
	Scan    *catalog.ProductScan
}
