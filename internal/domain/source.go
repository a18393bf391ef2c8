package domain

import "time"

// Source is a marketplace or front-end identity attributed as an order's
// origin. Rows are append-only: lookup-or-insert by domain.
type Source struct {
	ID        int64
	Domain    string
	Name      string
	Address   string // fee recipient address, when known
	CreatedAt time.Time
}
