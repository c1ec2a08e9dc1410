package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, ledgers and outboxes return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a conditional write lost (e.g. owner already set)
// - ErrInsufficientFunds: the paying account cannot cover the amount
// - ErrRejected: the receiving account refused the credit
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRejected          = errors.New("credit rejected")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnavailable       = errors.New("unavailable")
)
