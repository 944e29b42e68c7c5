package domain

import "time"

type BeerEventType string

const (
	BeerCreated     BeerEventType = "beer.created"
	BeerReplaced    BeerEventType = "beer.replaced"
	BeerDeleted     BeerEventType = "beer.deleted"
	BeerIncremented BeerEventType = "beer.incremented"
	BeerDecremented BeerEventType = "beer.decremented"
)

// BeerEvent describes a committed change to one beer.
type BeerEvent struct {
	Type       BeerEventType
	Beer       Beer
	Delta      int
	OccurredAt time.Time
}
