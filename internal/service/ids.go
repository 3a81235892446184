package service

import (
	"time"

	"github.com/google/uuid"
)

// newID returns a short random identifier for projects, connections and runs.
func newID() string {
	return uuid.NewString()[:8]
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}
