package store

import "time"

type Run struct {
	ID         string     `db:"id"`
	Report     string     `db:"report"`
	Status     string     `db:"status"`
	Params     []byte     `db:"params"` // msgpack encoded
	Bands      int        `db:"bands"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Error      *string    `db:"error"`
}
