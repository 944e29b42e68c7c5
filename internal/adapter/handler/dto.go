package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rl1809/beer-stock/internal/core/domain"
)

const (
	maxNameLength  = 100
	maxBrandLength = 150
	maxStock       = 500
	maxAdjustment  = 100
)

var ErrInvalidRequest = errors.New("invalid request")

type BeerRequest struct {
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Type     string `json:"type"`
	Max      int    `json:"max"`
	Quantity int    `json:"quantity"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type BeerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand"`
	Type      string    `json:"type"`
	Max       int       `json:"max"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// ToInput validates the request and maps it to a domain input.
func (r BeerRequest) ToInput() (domain.BeerInput, error) {
	var problems []string

	if strings.TrimSpace(r.Name) == "" || utf8.RuneCountInString(r.Name) > maxNameLength {
		problems = append(problems, fmt.Sprintf("name must be 1-%d characters", maxNameLength))
	}
	if strings.TrimSpace(r.Brand) == "" || utf8.RuneCountInString(r.Brand) > maxBrandLength {
		problems = append(problems, fmt.Sprintf("brand must be 1-%d characters", maxBrandLength))
	}
	beerType, err := domain.ParseBeerType(r.Type)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if r.Max < 0 || r.Max > maxStock {
		problems = append(problems, fmt.Sprintf("max must be between 0 and %d", maxStock))
	}
	if r.Quantity < 0 || r.Quantity > r.Max {
		problems = append(problems, "quantity must be between 0 and max")
	}

	if len(problems) > 0 {
		return domain.BeerInput{}, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return domain.BeerInput{
		Name:     r.Name,
		Brand:    r.Brand,
		Type:     beerType,
		Max:      r.Max,
		Quantity: r.Quantity,
	}, nil
}

func (r QuantityRequest) Validate() error {
	if r.Quantity < 0 || r.Quantity > maxAdjustment {
		return fmt.Errorf("%w: quantity must be between 0 and %d", ErrInvalidRequest, maxAdjustment)
	}
	return nil
}

func toBeerResponse(b domain.Beer) BeerResponse {
	return BeerResponse{
		ID:        b.ID,
		Name:      b.Name,
		Brand:     b.Brand,
		Type:      string(b.Type),
		Max:       b.Max,
		Quantity:  b.Quantity,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toBeerResponses(beers []domain.Beer) []BeerResponse {
	out := make([]BeerResponse, 0, len(beers))
	for _, b := range beers {
		out = append(out, toBeerResponse(b))
	}
	return out
}
