package models

import "github.com/google/uuid"

// assignID fills a zero primary key. Postgres also has column defaults, but
// the sqlite dialect used in tests and local mode does not.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
