package round

import "github.com/google/uuid"

// NewRoundID returns a fresh round id. UUIDv7 ids are time ordered, which keeps
// history rows of a room roughly in play order even when sorted by id.
func NewRoundID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
