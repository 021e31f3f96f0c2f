package models

import (
	"sort"

	"github.com/samber/lo"

	"github.com/nvr-ai/go-dms/models/model"
)

// Canonical class names shared by both detectors.
const (
	ClassSmoking     = "Smoking"
	ClassDrinking    = "Drinking"
	ClassEating      = "Eating"
	ClassPhoneUsage  = "Phone Usage"
	ClassSeatbelt    = "Seatbelt"
	ClassDistracted  = "Distracted"
	ClassDrowsy      = "Drowsy"
	ClassSafeDriving = "Safe Driving"
)

// DefaultUnification maps every native class of the built-in vocabularies onto
// its canonical name.
var DefaultUnification = map[string]string{
	"Cigarette":   ClassSmoking,
	"Smoking":     ClassSmoking,
	"Drinking":    ClassDrinking,
	"Eating":      ClassEating,
	"Phone":       ClassPhoneUsage,
	"PhoneUse":    ClassPhoneUsage,
	"Seatbelt":    ClassSeatbelt,
	"Distracted":  ClassDistracted,
	"Drowsy":      ClassDrowsy,
	"SafeDriving": ClassSafeDriving,
}

// UnificationMap resolves a model's native class name to its canonical class.
// Tables scoped to one vocabulary take precedence over the shared table, and
// names found in neither pass through unchanged.
//
// A UnificationMap is immutable once built and safe for concurrent use.
type UnificationMap struct {
	shared map[string]string
	scoped map[model.Name]map[string]string
}

// NewUnificationMap copies the given tables into a new map.
//
// Arguments:
//   - shared: Mapping applied to every vocabulary. May be nil.
//   - scoped: Per-vocabulary overrides. May be nil.
//
// Returns:
//   - *UnificationMap: The immutable map.
func NewUnificationMap(shared map[string]string, scoped map[model.Name]map[string]string) *UnificationMap {
	m := &UnificationMap{
		shared: make(map[string]string, len(shared)),
		scoped: make(map[model.Name]map[string]string, len(scoped)),
	}
	for k, v := range shared {
		m.shared[k] = v
	}
	for id, table := range scoped {
		cp := make(map[string]string, len(table))
		for k, v := range table {
			cp[k] = v
		}
		m.scoped[id] = cp
	}
	return m
}

// DefaultUnificationMap returns the map for the built-in vocabularies.
func DefaultUnificationMap() *UnificationMap {
	return NewUnificationMap(DefaultUnification, nil)
}

// Unify returns the canonical class for originalClass as emitted by vocabulary.
// A nil map is the identity mapping.
func (m *UnificationMap) Unify(originalClass string, vocabulary model.Name) string {
	if m == nil {
		return originalClass
	}
	if table, ok := m.scoped[vocabulary]; ok {
		if canonical, ok := table[originalClass]; ok {
			return canonical
		}
	}
	if canonical, ok := m.shared[originalClass]; ok {
		return canonical
	}
	return originalClass
}

// CanonicalClasses enumerates the canonical taxonomy: the range of the map plus
// the passthrough names of the given vocabularies. The result is sorted.
func (m *UnificationMap) CanonicalClasses(sets ...*OutputClassSet) []string {
	var classes []string
	if m != nil {
		classes = append(classes, lo.Values(m.shared)...)
		for _, table := range m.scoped {
			classes = append(classes, lo.Values(table)...)
		}
	}
	for _, set := range sets {
		for _, c := range set.Classes {
			classes = append(classes, m.Unify(c.Name, set.Style))
		}
	}
	classes = lo.Uniq(classes)
	sort.Strings(classes)
	return classes
}
