package domain

// PatientRow is one line of a dashboard table. For case-based dashboards the
// row id is the case id and CreatedAt is the case date.
type PatientRow struct {
	ID             int64     `json:"id"`
	PatientID      int64     `json:"patient_id"`
	Name           string    `json:"name"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"`
	Street         string    `json:"street"`
	Condition      string    `json:"condition"`
	Status         string    `json:"status"`
	HealthCenter   string    `json:"health_center,omitempty"`
	StreetLocation *Location `json:"street_location,omitempty"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`
}

// RowFromPatient builds a row from a doctor's patient record.
func RowFromPatient(p Patient) PatientRow {
	return PatientRow{
		ID:             p.ID,
		PatientID:      p.ID,
		Name:           p.FullName(),
		Age:            p.Age,
		Gender:         p.Gender,
		Street:         p.Street,
		Condition:      p.Condition,
		Status:         p.Status,
		HealthCenter:   p.HealthCenter,
		StreetLocation: p.StreetLocation,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// RowFromCase flattens a case report; the case date stands in for both
// timestamps.
func RowFromCase(c CaseReport) PatientRow {
	row := RowFromPatient(c.Patient)
	row.ID = c.ID
	row.CreatedAt = c.Date
	row.UpdatedAt = c.Date
	return row
}

// Counts are the four summary cards.
type Counts struct {
	Total     int `json:"total"`
	NewToday  int `json:"new_today"`
	Recovered int `json:"recovered"`
	Deceased  int `json:"deceased"`
}

// Bucket is one labelled chart value.
type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// MapPoint is a case marker. Color follows the patient status.
type MapPoint struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Age          int        `json:"age"`
	Status       string     `json:"status"`
	Condition    string     `json:"condition"`
	Street       string     `json:"street"`
	HealthCenter string     `json:"health_center,omitempty"`
	Latitude     Coordinate `json:"latitude"`
	Longitude    Coordinate `json:"longitude"`
	Color        string     `json:"color"`
}

// MapView is the initial map viewport.
type MapView struct {
	Center [2]float64 `json:"center"`
	Zoom   int        `json:"zoom"`
}

// DefaultMapView centers on Zanzibar Town.
var DefaultMapView = MapView{Center: [2]float64{-6.1659, 39.2026}, Zoom: 11}

// Summary is a role dashboard.
type Summary struct {
	Role    Role       `json:"role"`
	Title   string     `json:"title"`
	Counts  Counts     `json:"counts"`
	Monthly []Bucket   `json:"monthly"`
	Ages    []Bucket   `json:"age_groups"`
	Genders []Bucket   `json:"genders"`
	Points  []MapPoint `json:"map_points"`
	MapView MapView    `json:"map_view"`
}
