package identity

import "testing"

func TestResolveEmail(t *testing.T) {
	cases := []struct {
		name string
		doc  Document
		want string
		ok   bool
	}{
		{
			name: "related party wins over description",
			doc:  Document{RelatedPartyEmail: "a@x.com", Description: "contact b@y.com"},
			want: "a@x.com",
			ok:   true,
		},
		{
			name: "description before notes",
			doc:  Document{Description: "Customer: Jane <Jane.Doe@Example.com>", NoteTexts: []string{"c@z.com"}},
			want: "jane.doe@example.com",
			ok:   true,
		},
		{
			name: "invalid party email falls through",
			doc:  Document{RelatedPartyEmail: "not-an-email", NoteTexts: []string{"no email here", `LOCATION:{"email":"n@notes.io"}`}},
			want: "n@notes.io",
			ok:   true,
		},
		{
			name: "nothing matches",
			doc:  Document{Description: "walk-in customer", NoteTexts: []string{"@", "x@y"}},
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveEmail(tc.doc)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ResolveEmail() = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}
