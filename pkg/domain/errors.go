package domain

import (
	"errors"

	"github.com/sukryu/depdex/pkg/ports"
)

var (
	// ErrNotFound is returned for missing packages and pointers. It is the
	// storage port's sentinel, so errors.Is works against either name.
	ErrNotFound = ports.ErrKeyNotFound

	// ErrUnsupportedQueryRange is returned for query ranges with more than one OR group.
	ErrUnsupportedQueryRange = errors.New("OR-range queries not supported")

	// ErrInvalidPackage is returned when a document fails validation.
	ErrInvalidPackage = errors.New("invalid package")
)
