package domain

import (
	"fmt"
	"strings"
	"time"
)

type BeerType string

const (
	BeerTypeLager    BeerType = "Lager"
	BeerTypeMalzbier BeerType = "Malzbier"
	BeerTypeWitbier  BeerType = "Witbier"
	BeerTypeWeiss    BeerType = "Weiss"
	BeerTypeAle      BeerType = "Ale"
	BeerTypeIPA      BeerType = "IPA"
	BeerTypeStout    BeerType = "Stout"
)

var beerTypes = []BeerType{
	BeerTypeLager,
	BeerTypeMalzbier,
	BeerTypeWitbier,
	BeerTypeWeiss,
	BeerTypeAle,
	BeerTypeIPA,
	BeerTypeStout,
}

// BeerTypes returns every known beer type in declaration order.
func BeerTypes() []BeerType {
	out := make([]BeerType, len(beerTypes))
	copy(out, beerTypes)
	return out
}

// ParseBeerType matches s against the known types, ignoring case.
func ParseBeerType(s string) (BeerType, error) {
	for _, t := range beerTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown beer type %q", s)
}

func (t BeerType) Valid() bool {
	_, err := ParseBeerType(string(t))
	return err == nil
}

type Beer struct {
	ID        string
	Name      string
	Brand     string
	Type      BeerType
	Max       int
	Quantity  int
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeerInput carries every caller-controlled field of a beer, used for create and full replace.
type BeerInput struct {
	Name     string
	Brand    string
	Type     BeerType
	Max      int
	Quantity int
}

// NewBeer builds an unsaved beer from input. The store assigns ID, version and timestamps.
func NewBeer(in BeerInput) Beer {
	return Beer{
		Name:     in.Name,
		Brand:    in.Brand,
		Type:     in.Type,
		Max:      in.Max,
		Quantity: in.Quantity,
	}
}

// Overwrite replaces every caller-controlled field, keeping identity and store bookkeeping.
func (b Beer) Overwrite(in BeerInput) Beer {
	b.Name = in.Name
	b.Brand = in.Brand
	b.Type = in.Type
	b.Max = in.Max
	b.Quantity = in.Quantity
	return b
}

// Increment returns the quantity after adding delta and whether it stays within Max.
// The headroom is compared before adding so a huge delta cannot wrap around.
func (b Beer) Increment(delta int) (int, bool) {
	if delta > b.Max-b.Quantity {
		return b.Quantity, false
	}
	return b.Quantity + delta, true
}

// Decrement returns the quantity after removing delta and whether it stays non-negative.
func (b Beer) Decrement(delta int) (int, bool) {
	if delta > b.Quantity {
		return b.Quantity, false
	}
	return b.Quantity - delta, true
}
