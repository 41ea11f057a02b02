package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure patterns.
// These allow both errors.Is() checks and errors.As() for detail.
var (
	// ErrReadOnly is returned by any mutating operation on a read-only crate.
	ErrReadOnly = errors.New("crate is read-only")

	// ErrAlreadyLoaded is returned when Load is called on a loaded crate.
	ErrAlreadyLoaded = errors.New("crate already loaded")

	// ErrNotFound is returned when an entry, member, file, certificate or
	// signature cannot be found. Distinct from a verification returning
	// false: "missing" and "mismatched" are separate reportable outcomes.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntry is returned when adding an entry name that is
	// already recorded in the manifest.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrProtectedName is returned when an operation targets a reserved
	// entry name.
	ErrProtectedName = errors.New("protected entry name")
)

// NotFoundError carries what was looked up and where.
type NotFoundError struct {
	Kind string // "entry", "file", "member", "certificate", "signature", "container"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// Is implements matching for errors.Is(err, entities.ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateEntryError indicates an add collided with an existing entry.
// The first entry's digest is left untouched.
type DuplicateEntryError struct {
	Name string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate entry: %s", e.Name)
}

func (e *DuplicateEntryError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// ProtectedNameError indicates an operation on a reserved entry name.
type ProtectedNameError struct {
	Name    string
	Pattern string
}

func (e *ProtectedNameError) Error() string {
	return fmt.Sprintf("protected entry name %q (matches %q)", e.Name, e.Pattern)
}

func (e *ProtectedNameError) Is(target error) bool {
	return target == ErrProtectedName
}
