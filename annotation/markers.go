package annotation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FactKind is the closed set of facts a document may carry.
type FactKind int

const (
	KindUnknown FactKind = iota
	KindLocation
	KindServices
	KindInfrastructure
	KindAreaMatch
)

const (
	MarkerLocation       = "LOCATION:"
	MarkerServices       = "SERVICES:"
	MarkerInfrastructure = "INFRASTRUCTURE:"
	MarkerAreaMatch      = "AREA_MATCH:"
)

var markerByKind = map[FactKind]string{
	KindLocation:       MarkerLocation,
	KindServices:       MarkerServices,
	KindInfrastructure: MarkerInfrastructure,
	KindAreaMatch:      MarkerAreaMatch,
}

// characteristic names are matched case-insensitively after stripping '_' and '-'
var kindByCharacteristic = map[string]FactKind{
	"location":            KindLocation,
	"address":             KindLocation,
	"serviceaddress":      KindLocation,
	"installationaddress": KindLocation,
	"services":            KindServices,
	"requestedservices":   KindServices,
	"infrastructure":      KindInfrastructure,
	"availability":        KindInfrastructure,
	"areamatch":           KindAreaMatch,
	"qualificationresult": KindAreaMatch,
}

func (k FactKind) String() string {
	switch k {
	case KindLocation:
		return "location"
	case KindServices:
		return "services"
	case KindInfrastructure:
		return "infrastructure"
	case KindAreaMatch:
		return "area_match"
	default:
		return "unknown"
	}
}

func (k FactKind) Marker() string {
	return markerByKind[k]
}

// KindOfCharacteristic maps a characteristic name to its fact kind, KindUnknown when not recognized.
func KindOfCharacteristic(name string) FactKind {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	if kind, ok := kindByCharacteristic[key]; ok {
		return kind
	}
	return KindUnknown
}

// splitMarker returns the kind and the remaining payload of a note, KindUnknown when no marker matches.
func splitMarker(text string) (FactKind, string) {
	trimmed := strings.TrimSpace(text)
	for kind, marker := range markerByKind {
		if strings.HasPrefix(trimmed, marker) {
			return kind, strings.TrimSpace(trimmed[len(marker):])
		}
	}
	return KindUnknown, ""
}

// NoteText renders payload as a marker-prefixed note, the shape writers attach to documents.
func NoteText(kind FactKind, payload any) (string, error) {
	marker := kind.Marker()
	if marker == "" {
		return "", fmt.Errorf("no marker for fact kind %s", kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return marker + string(data), nil
}
