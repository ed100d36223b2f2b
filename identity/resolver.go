package identity

import (
	"strings"

	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

// Document holds the candidate locations of a linking key, in the order they are consulted.
type Document struct {
	RelatedPartyEmail string
	Description       string
	NoteTexts         []string
}

// ResolveEmail returns the first email found in relatedParty[0].email, then the description, then the notes.
// The result is lower-cased. ok is false when no candidate matches; that means "cannot sync", not a fault.
func ResolveEmail(doc Document) (email string, ok bool) {
	if party := strings.TrimSpace(doc.RelatedPartyEmail); utils.IsValidEmail(party) {
		return strings.ToLower(party), true
	}
	if email, ok := utils.FindEmail(doc.Description); ok {
		return email, true
	}
	for _, text := range doc.NoteTexts {
		if email, ok := utils.FindEmail(text); ok {
			return email, true
		}
	}
	return "", false
}
