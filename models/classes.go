// Package models - Class vocabularies of the detection models and their unification
// onto one canonical taxonomy.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-dms/models/model"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet is the ordered vocabulary of one model. Index k of the set
// corresponds to score channel 4+k of the model's raw output.
type OutputClassSet struct {
	// Style is the model the vocabulary belongs to.
	Style model.Name
	// Classes that the model can emit, in score-channel order.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a vocabulary from class names in score-channel order.
//
// Arguments:
//   - style: The model the vocabulary belongs to.
//   - names: The class names, index 0 first.
//
// Returns:
//   - *OutputClassSet: The vocabulary with its name index built.
func NewOutputClassSet(style model.Name, names ...string) *OutputClassSet {
	set := &OutputClassSet{Style: style, Classes: make([]OutputClass, len(names))}
	for i, name := range names {
		set.Classes[i] = OutputClass{Index: i, Name: name}
	}
	set.BuildNameIndexMap()
	return set
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Len returns the number of classes, i.e. the number of score channels.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Name returns the class name at idx.
func (s *OutputClassSet) Name(idx int) (string, bool) {
	if idx < 0 || idx >= len(s.Classes) {
		return "", false
	}
	return s.Classes[idx].Name, true
}

// Names returns a copy of the class names in score-channel order.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets  map[model.Name]*OutputClassSet
	order []model.Name
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[model.Name]*OutputClassSet)}
	for _, set := range allSets {
		set.BuildNameIndexMap()
		if _, ok := mgr.sets[set.Style]; !ok {
			mgr.order = append(mgr.order, set.Style)
		}
		mgr.sets[set.Style] = set
	}
	return mgr
}

// Set returns the vocabulary registered for style.
func (m *ClassManager) Set(style model.Name) (*OutputClassSet, bool) {
	set, ok := m.sets[style]
	return set, ok
}

// Sets returns the registered vocabularies in registration order.
func (m *ClassManager) Sets() []*OutputClassSet {
	sets := make([]*OutputClassSet, 0, len(m.order))
	for _, style := range m.order {
		sets = append(sets, m.sets[style])
	}
	return sets
}

// GetName returns the class name for a given style and index.
func (m *ClassManager) GetName(style model.Name, idx int) (string, error) {
	set, ok := m.sets[style]
	if !ok {
		return "", errors.Errorf("style %q not registered", style)
	}
	name, ok := set.Name(idx)
	if !ok {
		return "", errors.Errorf("index %d out of range for style %q", idx, style)
	}
	return name, nil
}

// GetIndex returns the class index for a given style and name.
func (m *ClassManager) GetIndex(style model.Name, name string) (int, error) {
	set, ok := m.sets[style]
	if !ok {
		return -1, errors.Errorf("style %q not registered", style)
	}
	idx, ok := set.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in style %q", name, style)
	}
	return idx, nil
}

// ObjectClassNames is the vocabulary of the in-cabin object detector.
var ObjectClassNames = []string{"Cigarette", "Drinking", "Eating", "Phone", "Seatbelt"}

// BehaviorClassNames is the vocabulary of the driver state detector.
var BehaviorClassNames = []string{
	"Distracted", "Drinking", "Drowsy", "Eating", "PhoneUse", "SafeDriving", "Seatbelt", "Smoking",
}

// ObjectClasses returns a fresh vocabulary for the object detector.
func ObjectClasses() *OutputClassSet {
	return NewOutputClassSet(model.ModelNameObjects, ObjectClassNames...)
}

// BehaviorClasses returns a fresh vocabulary for the driver state detector.
func BehaviorClasses() *OutputClassSet {
	return NewOutputClassSet(model.ModelNameBehaviors, BehaviorClassNames...)
}
