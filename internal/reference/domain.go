// Package reference manages the lookup lists (companies, mediators, material
// types, destinations) that batch forms select from and extend inline.
package reference

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind names a reference collection by its API path segment.
type Kind string

const (
	Companies     Kind = "companies"
	Mediators     Kind = "mediators"
	MaterialTypes Kind = "material-types"
	Destinations  Kind = "destinations"
)

// ErrNameRequired is returned before any API call when a new entry has no name.
var ErrNameRequired = errors.New("reference: name is required")

// ErrUnknownKind guards against arbitrary path segments.
var ErrUnknownKind = errors.New("reference: unknown kind")

// Label is the singular, human readable name of the kind.
func (k Kind) Label() string {
	switch k {
	case Companies:
		return "company"
	case Mediators:
		return "mediator"
	case MaterialTypes:
		return "material type"
	case Destinations:
		return "destination"
	default:
		return string(k)
	}
}

// SentenceLabel is Label with its first word capitalised, for the start of a
// notice.
func (k Kind) SentenceLabel() string {
	first, rest, found := strings.Cut(k.Label(), " ")
	first = cases.Title(language.English).String(first)
	if !found {
		return first
	}
	return first + " " + rest
}

// Valid reports whether k is one of the known collections.
func (k Kind) Valid() bool {
	switch k {
	case Companies, Mediators, MaterialTypes, Destinations:
		return true
	}
	return false
}

// Entity is the shape shared by every reference record.
type Entity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EntityID is the id accessor used by selectors over Entity.
func EntityID(e Entity) int64 { return e.ID }

// FindByName returns the first entity, in list order, whose name equals name.
func FindByName(entities []Entity, name string) (Entity, bool) {
	if strings.TrimSpace(name) == "" {
		return Entity{}, false
	}
	for _, e := range entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// NameOf returns the name for id, or "" when absent.
func NameOf(entities []Entity, id int64) string {
	for _, e := range entities {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}
