package domain

// Profile is the editable part of a user record.
type Profile struct {
	FirstName string `json:"first_name" validate:"max=20"`
	LastName  string `json:"last_name" validate:"max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=13,phone"`
}
