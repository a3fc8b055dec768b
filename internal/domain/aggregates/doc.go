// Package aggregates defines the write boundaries of the catalog and lifecycle
// subsystems. Every method runs as one transaction and reports failures as *Error.
package aggregates
