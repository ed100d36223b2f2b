package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Note is one free-text entry attached to a source document.
// Notes without a recognized marker are kept as-is and ignored by the parser.
type Note struct {
	Text   string    `json:"text"`
	Author string    `json:"author,omitempty"`
	Date   time.Time `json:"date"`
}

// Characteristic is a name/value pair. Value is raw JSON, or a JSON string holding JSON.
type Characteristic struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	District   string `json:"district,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

func (a *Address) IsEmpty() bool {
	return a == nil || (a.Street == "" && a.City == "" && a.District == "" && a.Province == "" && a.PostalCode == "")
}

func (a Address) Equal(b Address) bool {
	return a == b
}

type Availability struct {
	Available bool   `json:"available"`
	MaxSpeed  string `json:"maxSpeed,omitempty"`
}

// UnmarshalJSON accepts a bare boolean as shorthand for {"available": <bool>}.
func (a *Availability) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("true")) || bytes.Equal(trimmed, []byte("false")) {
		a.Available = bytes.Equal(trimmed, []byte("true"))
		a.MaxSpeed = ""
		return nil
	}
	type plain Availability
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*a = Availability(p)
	return nil
}

type Infrastructure struct {
	Fiber     *Availability `json:"fiber,omitempty"`
	Copper    *Availability `json:"copper,omitempty"`
	Wireless  *Availability `json:"wireless,omitempty"`
	CheckedAt *time.Time    `json:"checkedAt,omitempty"`
}

func (i *Infrastructure) IsEmpty() bool {
	return i == nil || (i.Fiber == nil && i.Copper == nil && i.Wireless == nil)
}

type Outcome struct {
	Matched  bool   `json:"matched"`
	AreaName string `json:"areaName,omitempty"`
	Result   string `json:"result,omitempty"`
}

// Facts is the typed view over everything extracted from one document. Every field is optional.
type Facts struct {
	Address        *Address        `json:"address,omitempty"`
	Services       []string        `json:"services,omitempty"`
	Infrastructure *Infrastructure `json:"infrastructure,omitempty"`
	Outcome        *Outcome        `json:"outcome,omitempty"`
}

func (f Facts) IsEmpty() bool {
	return f.Address == nil && len(f.Services) == 0 && f.Infrastructure == nil && f.Outcome == nil
}

// Input is what Parse reads. Extension holds facts decoded at write time and wins over notes and characteristics.
type Input struct {
	Extension       *Facts
	Notes           []Note
	Characteristics []Characteristic
}

// flexString decodes either a JSON string or a JSON number into a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = flexString(n.String())
	return nil
}
