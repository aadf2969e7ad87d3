package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a record identifier as the CRS API sends it. The API uses integer
// keys, but token claims and older stored records may carry strings.
type ID string

// UnmarshalJSON accepts a JSON number, a JSON string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers so the API sees its own shape.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// User is the signed-in user as kept in the session and persisted store.
type User struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// UnmarshalJSON normalizes the role while decoding.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	var raw struct {
		alias
		Role string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User(raw.alias)
	u.Role = ParseRole(raw.Role)
	return nil
}

// DisplayName is the first name, or "User" when none is known.
func (u *User) DisplayName() string {
	if u == nil || u.FirstName == "" {
		return "User"
	}
	return u.FirstName
}

// Credentials are the login form fields.
type Credentials struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResult is the body of a successful login/ call: the token pair plus
// the user fields, which the API sends at the top level.
type LoginResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"-"`
}

// UnmarshalJSON reads the tokens and the flattened user fields. A nested
// "user" object is accepted too.
func (r *LoginResult) UnmarshalJSON(data []byte) error {
	var tokens struct {
		Access  string          `json:"access"`
		Refresh string          `json:"refresh"`
		User    json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	r.Access, r.Refresh = tokens.Access, tokens.Refresh

	userData := data
	if len(tokens.User) > 0 && tokens.User[0] == '{' {
		userData = tokens.User
	}
	return json.Unmarshal(userData, &r.User)
}
