package session

import "time"

// Kind classifies a visitor and gates which actions are permitted.
type Kind string

const (
	KindAnonymous Kind = "anonymous"
	KindStudent   Kind = "student"
	KindExpert    Kind = "expert"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAnonymous, KindStudent, KindExpert:
		return true
	}
	return false
}

// Profile is the shallow snapshot of what the user entered about themselves.
type Profile struct {
	ID              string   `json:"_id,omitempty"`
	FullName        string   `json:"fullName,omitempty"`
	Email           string   `json:"email,omitempty"`
	PhoneNumber     string   `json:"phoneNumber,omitempty"`
	CityOfResidence string   `json:"cityOfResidence,omitempty"`
	Role            string   `json:"role,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Goals           []string `json:"goals,omitempty"`
}

func (p *Profile) HasPhone() bool {
	return p != nil && p.PhoneNumber != ""
}

// KindFromRole maps the backend's user role onto a session kind.
func KindFromRole(role string) Kind {
	if role == "expert" {
		return KindExpert
	}
	return KindStudent
}

// State is the per-browser session held by the BFF.
type State struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	BackendToken string    `json:"backendToken,omitempty"`
	Profile      *Profile  `json:"profile,omitempty"`
	FetchedAt    time.Time `json:"fetchedAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Fresh reports whether the cached profile was fetched within expiry of now.
func (s *State) Fresh(now time.Time, expiry time.Duration) bool {
	if s == nil || s.Profile == nil || s.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(s.FetchedAt) < expiry
}

func (s *State) Authenticated() bool {
	return s != nil && s.Kind != KindAnonymous && s.BackendToken != ""
}
