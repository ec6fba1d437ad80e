package model

import "errors"

// ErrEmptyEnabledProvers is returned by Repository.Validate when a
// registration would create a repo with no provers enabled.
var ErrEmptyEnabledProvers = errors.New("model: enabled_provers must be non-empty")

// ErrInvalidMode is returned by Repository.Validate when the configured
// bot mode is not one of the recognized values.
var ErrInvalidMode = errors.New("model: mode is not a recognized bot mode")
