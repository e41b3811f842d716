package models

import (
	"errors"
	"testing"
)

func TestNormalizeParcelID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ParcelID
		wantErr bool
	}{
		{name: "plain digits", raw: "17161060120000", want: "17161060120000"},
		{name: "dashed county notation", raw: "17-16-106-012-0000", want: "17161060120000"},
		{name: "spaces and dots", raw: " 17 16.106.012 0000 ", want: "17161060120000"},
		{name: "too short", raw: "1716106012", wantErr: true},
		{name: "too long", raw: "171610601200001", wantErr: true},
		{name: "letters", raw: "17-16-106-012-000A", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeParcelID(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParcelID) {
					t.Fatalf("Expected ErrInvalidParcelID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeParcelID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeParcelID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParcelID_Formatted(t *testing.T) {
	if got := ParcelID("17161060120000").Formatted(); got != "17-16-106-012-0000" {
		t.Errorf("Formatted() = %q", got)
	}
	// Non-normalized values are returned as-is
	if got := ParcelID("123").Formatted(); got != "123" {
		t.Errorf("Formatted() = %q", got)
	}
}

func TestProperty_Validate(t *testing.T) {
	valid := func() Property {
		return Property{ParcelID: "17161060120000", ClassCode: "2-78", AssessedValue: 30000}
	}

	tests := []struct {
		name    string
		mutate  func(p *Property)
		wantErr error
	}{
		{name: "complete", mutate: func(p *Property) {}},
		{name: "missing parcel id", mutate: func(p *Property) { p.ParcelID = "" }, wantErr: ErrMissingPropertyField},
		{name: "malformed parcel id", mutate: func(p *Property) { p.ParcelID = "17-16" }, wantErr: ErrInvalidParcelID},
		{name: "missing class", mutate: func(p *Property) { p.ClassCode = "" }, wantErr: ErrMissingPropertyField},
		{name: "zero assessed value", mutate: func(p *Property) { p.AssessedValue = 0 }, wantErr: ErrMissingPropertyField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProperty_DeriveMarketValue(t *testing.T) {
	p := Property{AssessedValue: 30000, MarketValue: 1}
	p.DeriveMarketValue(10)
	if p.MarketValue != 300000 {
		t.Errorf("MarketValue = %v, want 300000", p.MarketValue)
	}
}

func TestComparable_Derived(t *testing.T) {
	price := 250000.0
	c := Comparable{AssessedValue: 24000, SquareFeet: 1200, SalePrice: &price}

	if c.HasVerifiedSale() {
		t.Error("Sale without a date should not count as verified")
	}
	if got := c.ValuePerSqft(); got != 20 {
		t.Errorf("ValuePerSqft() = %v, want 20", got)
	}
	c.SquareFeet = 0
	if got := c.ValuePerSqft(); got != 0 {
		t.Errorf("ValuePerSqft() with unknown size = %v, want 0", got)
	}
}

func TestStage(t *testing.T) {
	for _, s := range AllStages {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Stage("appealed").Valid() {
		t.Error("Unknown stage reported valid")
	}

	absorbing := map[Stage]bool{StageCompleted: true, StageWithdrawn: true, StageExpired: true}
	for _, s := range AllStages {
		if s.Absorbing() != absorbing[s] {
			t.Errorf("%s.Absorbing() = %v", s, s.Absorbing())
		}
	}
}

func TestAppeal_Review(t *testing.T) {
	a := &Appeal{}
	a.Review(BodyBOR).ConfirmationNumber = "BOR-1"
	if a.BOR.ConfirmationNumber != "BOR-1" {
		t.Error("Review should return a pointer into the appeal")
	}
	if a.Review(ReviewBody("county_court")) != nil {
		t.Error("Unknown body should return nil")
	}
}

func TestAppeal_Clone(t *testing.T) {
	a := &Appeal{
		Stage:   StageDraft,
		Grounds: []AppealGround{GroundMarketValue},
		Recommendation: &Recommendation{
			Reasons:        []string{"overassessed"},
			SupportingData: map[string]float64{"sales": 4},
		},
	}

	c := a.Clone()
	c.Stage = StageReadyToFile
	c.Grounds[0] = GroundUniformity
	c.Recommendation.Reasons[0] = "changed"
	c.Recommendation.SupportingData["sales"] = 9

	if a.Stage != StageDraft || a.Grounds[0] != GroundMarketValue {
		t.Error("Clone shares top-level state with the original")
	}
	if a.Recommendation.Reasons[0] != "overassessed" || a.Recommendation.SupportingData["sales"] != 4 {
		t.Error("Clone shares recommendation state with the original")
	}
}

func TestAppeal_HasLetter(t *testing.T) {
	text := "Dear Board,"
	a := &Appeal{LetterText: &text}
	if a.HasLetter() {
		t.Error("Letter without a generation timestamp should not count")
	}
}
