// Package rpc exposes the three inbound operations - search, get by ID,
// and sync - behind strongly typed, validated request structs. Transport
// and tool-schema adapters sit above this package and only format its
// results; no validation leaks past it into the core.
package rpc

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared across requests; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New()

// SearchRequest carries every filter the search operation accepts.
// All fields are optional; an entirely empty request triggers the query
// engine's default recent-window behavior.
type SearchRequest struct {
	Query     string   `json:"query,omitempty"`
	Products  []string `json:"products,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
	Status    string   `json:"status,omitempty"`

	// DateFrom and DateTo bound the GA date, inclusive, as "YYYY-MM".
	DateFrom string `json:"date_from,omitempty" validate:"omitempty,datetime=2006-01"`
	DateTo   string `json:"date_to,omitempty" validate:"omitempty,datetime=2006-01"`

	// Limit defaults to the engine maximum when zero.
	Limit  int `json:"limit,omitempty" validate:"omitempty,gte=1,lte=10000"`
	Offset int `json:"offset,omitempty" validate:"gte=0"`
}

// Validate checks the request shape. Pure function of the input; returns
// a CodeValidation error without touching storage.
func (r SearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &Error{Code: CodeValidation, Message: "invalid search request", Err: err}
	}
	// Cross-field rule the tag validators cannot express: string lte
	// compares lengths, not lexicographic order.
	if r.DateFrom != "" && r.DateTo != "" && r.DateFrom > r.DateTo {
		return validationError("date_from %q is after date_to %q", r.DateFrom, r.DateTo)
	}
	return nil
}

// GetRequest identifies one feature.
type GetRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
}

// Validate checks the request shape.
func (r GetRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError("id must be a positive integer, got %d", r.ID)
	}
	return nil
}

// SyncRequest triggers a synchronization cycle. When Force is false and
// the checkpoint is fresh, the cycle is skipped.
type SyncRequest struct {
	Force bool `json:"force,omitempty"`
}
