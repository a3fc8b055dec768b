// Package aggregates implements the catalog and lifecycle write boundaries over
// the table repos in internal/data/repos. Each write runs in one transaction and
// maps store failures onto domain aggregate error codes.
package aggregates
