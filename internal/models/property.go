package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingPropertyField is returned by Property.Validate when a required field is absent.
var ErrMissingPropertyField = errors.New("missing required property field")

// Property is the subject of an analysis: one parcel's characteristics for
// a single assessment year, as supplied by the acquisition collaborator.
type Property struct {
	UpdatedAt      time.Time `json:"updatedAt"`
	ParcelID       ParcelID  `json:"parcelId"`
	Address        string    `json:"address"`
	Township       string    `json:"township"`
	ClassCode      string    `json:"classCode"`
	AssessedValue  float64   `json:"assessedValue"`
	MarketValue    float64   `json:"marketValue"`
	Bathrooms      float64   `json:"bathrooms"`
	AssessmentYear int       `json:"assessmentYear"`
	SquareFeet     int       `json:"squareFeet"`
	YearBuilt      int       `json:"yearBuilt"`
	Bedrooms       int       `json:"bedrooms"`
}

// Validate checks the fields the analyzer cannot work without.
func (p *Property) Validate() error {
	if p.ParcelID == "" {
		return fmt.Errorf("%w: parcel id", ErrMissingPropertyField)
	}
	if _, err := NormalizeParcelID(string(p.ParcelID)); err != nil {
		return err
	}
	if p.ClassCode == "" {
		return fmt.Errorf("%w: class code", ErrMissingPropertyField)
	}
	if p.AssessedValue <= 0 {
		return fmt.Errorf("%w: assessed value must be positive, got %.2f",
			ErrMissingPropertyField, p.AssessedValue)
	}
	return nil
}

// DeriveMarketValue sets MarketValue from the assessed value and the county
// assessment multiplier.
func (p *Property) DeriveMarketValue(multiplier float64) {
	p.MarketValue = p.AssessedValue * multiplier
}

// Comparable is a candidate peer property supplied alongside the subject.
// Sale fields are nil when the parcel has no recorded arm's-length sale.
type Comparable struct {
	SalePrice     *float64   `json:"salePrice,omitempty"`
	SaleDate      *time.Time `json:"saleDate,omitempty"`
	ParcelID      ParcelID   `json:"parcelId"`
	Address       string     `json:"address"`
	ClassCode     string     `json:"classCode"`
	AssessedValue float64    `json:"assessedValue"`
	MarketValue   float64    `json:"marketValue"`
	Bathrooms     float64    `json:"bathrooms"`
	SquareFeet    int        `json:"squareFeet"`
	YearBuilt     int        `json:"yearBuilt"`
	Bedrooms      int        `json:"bedrooms"`
}

// HasVerifiedSale reports whether the comparable carries a usable sale.
func (c *Comparable) HasVerifiedSale() bool {
	return c.SalePrice != nil && *c.SalePrice > 0 && c.SaleDate != nil
}

// ValuePerSqft returns assessed value per square foot, or 0 when size is unknown.
func (c *Comparable) ValuePerSqft() float64 {
	if c.SquareFeet <= 0 {
		return 0
	}
	return c.AssessedValue / float64(c.SquareFeet)
}

// Exemption is a tax exemption the subject parcel is or may be eligible for.
type Exemption struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Eligible bool   `json:"eligible"`
	Applied  bool   `json:"applied"`
}

// SocialProof summarizes prior successful appeals for similar properties.
type SocialProof struct {
	Township               string  `json:"township"`
	ClassCode              string  `json:"classCode"`
	MedianReductionPercent float64 `json:"medianReductionPercent"`
	WonCount               int     `json:"wonCount"`
	TotalCount             int     `json:"totalCount"`
}
