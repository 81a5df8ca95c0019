package db

import (
	"time"
)

type Document struct {
	Collection string
	Key        string
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
