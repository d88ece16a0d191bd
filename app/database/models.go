package database

import (
	"time"
)

// NoTitleSentinel is stored when the source supplies a blank title.
const NoTitleSentinel = "No Title Available"

// Article represents one published GalNet item. DateReleased is always held
// in the canonical (real-world) calendar; conversion to the galactic display
// calendar happens at the presentation boundary only.
type Article struct {
	ID           int64
	Title        string
	UID          string
	DateReleased time.Time
	DateAdded    time.Time
	Text         string
}
