package models

import "strings"

// RelatedParty is a party reference carried by qualifications and orders.
type RelatedParty struct {
	Id    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Role  string `json:"role,omitempty"`
}

func firstPartyEmail(parties []RelatedParty) string {
	if len(parties) == 0 {
		return ""
	}
	return strings.TrimSpace(parties[0].Email)
}
