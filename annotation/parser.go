package annotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

var errNoValue = errors.New("payload carries no usable value")

type Parser struct {
	logger *logrus.Logger
}

func NewParser(logger *logrus.Logger) *Parser {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Parser{logger: logger}
}

// Parse extracts facts. For every kind the first location yielding a usable value wins:
// extension facts, then notes (in order), then characteristics (in order).
// Malformed payloads are logged and skipped.
func (p *Parser) Parse(in Input) Facts {
	var facts Facts
	if in.Extension != nil {
		facts = normalize(*in.Extension)
	}

	for i, note := range in.Notes {
		kind, payload := splitMarker(note.Text)
		if kind == KindUnknown || facts.has(kind) {
			continue
		}
		if err := facts.apply(kind, []byte(payload)); err != nil {
			p.warn("note", i, kind, err)
		}
	}

	for i, ch := range in.Characteristics {
		kind := KindOfCharacteristic(ch.Name)
		if kind == KindUnknown || facts.has(kind) {
			continue
		}
		raw, err := characteristicPayload(kind, ch.Value)
		if err == nil {
			err = facts.apply(kind, raw)
		}
		if err != nil {
			p.warn("characteristic", i, kind, err)
		}
	}
	return facts
}

func (p *Parser) warn(location string, index int, kind FactKind, err error) {
	if errors.Is(err, errNoValue) {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"module":   "annotation",
		"location": location,
		"index":    index,
		"kind":     kind.String(),
	}).Warn("skipping malformed annotation: " + err.Error())
}

// Encode prepares parsed facts for storage as extension facts; nil when nothing was extracted.
func Encode(f Facts) *Facts {
	n := normalize(f)
	if n.IsEmpty() {
		return nil
	}
	return &n
}

func normalize(f Facts) Facts {
	out := Facts{Outcome: f.Outcome}
	if f.Address != nil && strings.TrimSpace(f.Address.District) != "" {
		addr := trimAddress(*f.Address)
		out.Address = &addr
	}
	if services := cleanServices(f.Services); len(services) > 0 {
		out.Services = services
	}
	if !f.Infrastructure.IsEmpty() {
		out.Infrastructure = f.Infrastructure
	}
	return out
}

func (f *Facts) has(kind FactKind) bool {
	switch kind {
	case KindLocation:
		return f.Address != nil
	case KindServices:
		return len(f.Services) > 0
	case KindInfrastructure:
		return f.Infrastructure != nil
	case KindAreaMatch:
		return f.Outcome != nil
	}
	return false
}

func (f *Facts) apply(kind FactKind, raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.New("empty payload")
	}
	if err := validatePayload(kind, raw); err != nil {
		return err
	}

	switch kind {
	case KindLocation:
		addr, err := decodeLocation(raw)
		if err != nil {
			return err
		}
		f.Address = addr
	case KindServices:
		services, err := decodeServices(raw)
		if err != nil {
			return err
		}
		f.Services = services
	case KindInfrastructure:
		var infra Infrastructure
		if err := json.Unmarshal(raw, &infra); err != nil {
			return err
		}
		if infra.IsEmpty() {
			return errNoValue
		}
		f.Infrastructure = &infra
	case KindAreaMatch:
		outcome, err := decodeOutcome(raw)
		if err != nil {
			return err
		}
		f.Outcome = outcome
	}
	return nil
}

type locationPayload struct {
	Street     string     `json:"street"`
	Address    string     `json:"address"`
	City       string     `json:"city"`
	District   string     `json:"district"`
	Province   string     `json:"province"`
	PostalCode flexString `json:"postalCode"`
}

// decodeLocation returns errNoValue when district is missing: that is "no address", not a malformed one.
func decodeLocation(raw []byte) (*Address, error) {
	var p locationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	street := p.Street
	if strings.TrimSpace(street) == "" {
		street = p.Address
	}
	addr := trimAddress(Address{
		Street:     street,
		City:       p.City,
		District:   p.District,
		Province:   p.Province,
		PostalCode: string(p.PostalCode),
	})
	if addr.District == "" {
		return nil, errNoValue
	}
	return &addr, nil
}

func trimAddress(a Address) Address {
	return Address{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		District:   strings.TrimSpace(a.District),
		Province:   strings.TrimSpace(a.Province),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

func decodeServices(raw []byte) ([]string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		v = obj["services"]
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errors.New("services payload is not a list")
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		switch it := item.(type) {
		case string:
			names = append(names, it)
		case map[string]any:
			if name, ok := it["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	services := cleanServices(names)
	if len(services) == 0 {
		return nil, errNoValue
	}
	return services, nil
}

func cleanServices(names []string) []string {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			trimmed = append(trimmed, n)
		}
	}
	return utils.UniqueSlice(trimmed)
}

func decodeOutcome(raw []byte) (*Outcome, error) {
	var p struct {
		Matched  bool   `json:"matched"`
		AreaName string `json:"areaName"`
		Area     string `json:"area"`
		Result   string `json:"result"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	area := strings.TrimSpace(p.AreaName)
	if area == "" {
		area = strings.TrimSpace(p.Area)
	}
	return &Outcome{Matched: p.Matched, AreaName: area, Result: strings.TrimSpace(p.Result)}, nil
}

// characteristicPayload unwraps values stored as a JSON string that itself holds JSON.
// A plain string is accepted for services as a comma separated list.
func characteristicPayload(kind FactKind, value json.RawMessage) ([]byte, error) {
	raw := bytes.TrimSpace(value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errNoValue
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, err
	}
	inner = strings.TrimSpace(inner)
	if json.Valid([]byte(inner)) {
		return []byte(inner), nil
	}
	if kind == KindServices {
		return json.Marshal(utils.SplitAndTrim(inner))
	}
	return nil, errors.New("characteristic value is not JSON")
}
