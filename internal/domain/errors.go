// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness conflict with an existing resource.
var ErrConflict = errors.New("conflict: resource already exists")

// ErrSyncInProgress indicates a sync run is already processing for the target.
var ErrSyncInProgress = errors.New("sync already in progress for this target")

// ErrValidation indicates a request failed domain validation.
var ErrValidation = errors.New("validation failed")

// ErrMissingCredentials indicates no upstream credential could be resolved
// for the target. Surfaces as a permanent fetch error at run start.
var ErrMissingCredentials = errors.New("upstream credentials are not configured")
