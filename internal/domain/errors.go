package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrStaleEvent    = errors.New("event too old")
	ErrRouterOff     = errors.New("auto-trade routing disabled")
	ErrVenueCooldown = errors.New("venue endpoint cooling down")
	ErrPaperOnly     = errors.New("applied to paper state only")
	ErrContextDone   = errors.New("context cancelled")
)
