package domain

import (
	"fmt"

	"github.com/sukryu/depdex/pkg/npmrange"
)

// Kind selects the dependency map an index record was built from.
type Kind string

const (
	KindDep Kind = "dep"
	KindDev Kind = "dev"
)

// Package is an immutable snapshot of one published package version.
type Package struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// ID returns the dependant identity name@version.
func (p Package) ID() string {
	return p.Name + "@" + p.Version
}

// Validate checks the document before anything is written.
func (p Package) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPackage)
	}
	if !npmrange.ValidVersion(p.Version) {
		return fmt.Errorf("%w: %s has invalid version %q", ErrInvalidPackage, p.Name, p.Version)
	}
	return nil
}

// DependenciesOf returns the map for kind.
func (p Package) DependenciesOf(kind Kind) map[string]string {
	if kind == KindDev {
		return p.DevDependencies
	}
	return p.Dependencies
}

// Declares reports whether the package lists dep under kind.
func (p Package) Declares(dep string, kind Kind) bool {
	_, ok := p.DependenciesOf(kind)[dep]
	return ok
}
