package store

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrDayFull    = errors.New("visit date is fully booked")
	ErrUserExists = errors.New("staff user already exists")
)
