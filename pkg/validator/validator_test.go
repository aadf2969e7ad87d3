package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patientForm struct {
	Name    string `json:"name" validate:"required,max=50"`
	Age     int    `json:"age" validate:"gte=0,lte=120"`
	Gender  string `json:"gender" validate:"omitempty,oneof=Male Female"`
	Phone   string `json:"phone" validate:"omitempty,max=13,phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Village string `validate:"required"`
	Notes   string `json:"-" validate:"max=5"`
}

func valid() patientForm {
	return patientForm{Name: "Juma", Age: 30, Gender: "Male", Phone: "+255712345678", Village: "Kigoma"}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(valid()))

	f := valid()
	f.Gender, f.Phone, f.Email = "", "", ""
	assert.NoError(t, Validate(f), "optional fields may be empty")
}

func TestValidate_FieldMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*patientForm)
		field  string
		want   string
	}{
		{"required", func(f *patientForm) { f.Name = "" }, "name", "is required"},
		{"too long", func(f *patientForm) { f.Name = "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz" }, "name", "Must be 50 characters or less"},
		{"negative age", func(f *patientForm) { f.Age = -1 }, "age", "must be at least 0"},
		{"age too high", func(f *patientForm) { f.Age = 121 }, "age", "must be at most 120"},
		{"gender", func(f *patientForm) { f.Gender = "Other" }, "gender", "must be one of: Male Female"},
		{"phone letters", func(f *patientForm) { f.Phone = "07a" }, "phone", "Only numbers and + allowed"},
		{"phone dashes", func(f *patientForm) { f.Phone = "0712-345" }, "phone", "Only numbers and + allowed"},
		{"email", func(f *patientForm) { f.Email = "juma@" }, "email", "Invalid email format"},
		{"no json tag", func(f *patientForm) { f.Village = "" }, "Village", "is required"},
		{"json dash", func(f *patientForm) { f.Notes = "far too long" }, "Notes", "Must be 5 characters or less"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(&f)
			fields := fieldsOf(t, Validate(f))
			assert.Len(t, fields, 1)
			assert.Equal(t, tt.want, fields[tt.field])
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	f := valid()
	f.Name, f.Age = "", 200

	err := Validate(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name' is required")
	assert.Contains(t, err.Error(), "field 'age' must be at most 120")
	assert.Len(t, fieldsOf(t, err), 2)
}

func TestValidate_UnknownTagMessage(t *testing.T) {
	type form struct {
		Code string `json:"code" validate:"uuid"`
	}
	fields := fieldsOf(t, Validate(form{Code: "x"}))
	assert.Equal(t, "failed on 'uuid' validation", fields["code"])
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("not a struct")
	require.Error(t, err)
	var valErr *ValidationError
	assert.NotErrorAs(t, err, &valErr)
}
