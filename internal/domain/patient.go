package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Patient statuses and conditions used by the CRS API.
const (
	StatusAlive     = "Alive"
	StatusRecovered = "Recovered"
	StatusDead      = "Dead"

	ConditionNormal = "Normal"
	ConditionSevere = "Severe"

	GenderMale   = "Male"
	GenderFemale = "Female"
)

// Coordinate is a latitude or longitude. The API serializes decimals as
// strings, so both shapes are accepted.
type Coordinate float64

// UnmarshalJSON accepts a JSON number or a numeric string.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", s, err)
		}
		*c = Coordinate(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Coordinate(v)
	return nil
}

// Location is a street's geographic position.
type Location struct {
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
}

// Patient is a patient record.
type Patient struct {
	ID             int64     `json:"id,omitempty"`
	FirstName      string    `json:"first_name" validate:"max=50"`
	LastName       string    `json:"last_name" validate:"max=50"`
	Age            int       `json:"age" validate:"gte=0,lte=120"`
	Gender         string    `json:"gender" validate:"omitempty,oneof=Male Female"`
	Phone          string    `json:"phone,omitempty" validate:"omitempty,max=13,phone"`
	Street         string    `json:"street,omitempty"`
	Condition      string    `json:"condition,omitempty" validate:"omitempty,oneof=Normal Severe"`
	Status         string    `json:"status,omitempty" validate:"omitempty,oneof=Alive Recovered Dead"`
	HealthCenter   string    `json:"health_center,omitempty"`
	StreetLocation *Location `json:"street_location,omitempty"`
	CreatedAt      Timestamp `json:"created_at,omitzero"`
	UpdatedAt      Timestamp `json:"updated_at,omitzero"`
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}
