package service

import (
	"errors"

	"squad-planner/internal/domain"
)

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerExists     = errors.New("player already exists")
	ErrInvalidName      = errors.New("player name is required")
	ErrReadOnlyField    = errors.New("field is derived and cannot be edited")
	ErrNoImages         = errors.New("at least one image is required")
	ErrTooManyImages    = errors.New("too many images")
	ErrInvalidCount     = errors.New("count must be zero or more")
	ErrInvalidRole      = errors.New("unknown role")
	ErrInvalidSlot      = errors.New("unknown formation slot")
	ErrInvalidThreshold = errors.New("threshold needs a color, a name and a finite limit")
	ErrDuplicateTier    = errors.New("tier names and colors must be unique")
	ErrInvalidOption    = errors.New("atlantis option needs a label and a finite value")
	ErrInvalidSettings  = errors.New("formation settings must be finite and not negative")
	ErrTierNotFound     = errors.New("tier not found in formation")
)

func validateRole(role domain.Role) error {
	if _, ok := domain.ParseRole(string(role)); !ok {
		return ErrInvalidRole
	}
	return nil
}

func validateSlot(slot domain.Slot) error {
	if _, ok := domain.ParseSlot(string(slot)); !ok {
		return ErrInvalidSlot
	}
	return nil
}
