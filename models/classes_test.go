package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-dms/models/model"
)

func TestClassManagerLookups(t *testing.T) {
	mgr := NewClassManager(ObjectClasses(), BehaviorClasses())

	name, err := mgr.GetName(model.ModelNameObjects, 0)
	require.NoError(t, err)
	assert.Equal(t, "Cigarette", name)

	name, err = mgr.GetName(model.ModelNameBehaviors, 5)
	require.NoError(t, err)
	assert.Equal(t, "SafeDriving", name)

	idx, err := mgr.GetIndex(model.ModelNameBehaviors, "Smoking")
	require.NoError(t, err)
	assert.Equal(t, 7, idx)

	_, err = mgr.GetName(model.ModelNameObjects, 5)
	assert.Error(t, err, "index past the vocabulary must fail")

	_, err = mgr.GetIndex(model.ModelNameObjects, "Smoking")
	assert.Error(t, err, "Smoking is not a native object class")

	_, err = mgr.GetName(model.Name("unknown"), 0)
	assert.Error(t, err)

	sets := mgr.Sets()
	require.Len(t, sets, 2)
	assert.Equal(t, model.ModelNameObjects, sets[0].Style)
	assert.Equal(t, model.ModelNameBehaviors, sets[1].Style)
}

func TestOutputClassSetNames(t *testing.T) {
	set := ObjectClasses()
	assert.Equal(t, 5, set.Len())
	assert.Equal(t, ObjectClassNames, set.Names())

	names := set.Names()
	names[0] = "mutated"
	assert.Equal(t, "Cigarette", set.Classes[0].Name, "Names must return a copy")

	_, ok := set.Name(-1)
	assert.False(t, ok)
}

func TestUnify(t *testing.T) {
	m := DefaultUnificationMap()

	tests := []struct {
		name       string
		original   string
		vocabulary model.Name
		expected   string
	}{
		{"cigarette collapses onto smoking", "Cigarette", model.ModelNameObjects, ClassSmoking},
		{"smoking is its own canonical", "Smoking", model.ModelNameBehaviors, ClassSmoking},
		{"phone from objects", "Phone", model.ModelNameObjects, ClassPhoneUsage},
		{"phone use from behaviors", "PhoneUse", model.ModelNameBehaviors, ClassPhoneUsage},
		{"safe driving gets a spaced name", "SafeDriving", model.ModelNameBehaviors, ClassSafeDriving},
		{"unknown class passes through", "Yawning", model.ModelNameBehaviors, "Yawning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.Unify(tt.original, tt.vocabulary))
		})
	}
}

func TestUnifyScopedAndNil(t *testing.T) {
	shared := map[string]string{"Phone": ClassPhoneUsage}
	scoped := map[model.Name]map[string]string{
		model.ModelNameBehaviors: {"Phone": "Handheld Phone"},
	}
	m := NewUnificationMap(shared, scoped)

	// Mutating the source tables must not leak into the built map.
	shared["Phone"] = "changed"
	scoped[model.ModelNameBehaviors]["Phone"] = "changed"

	assert.Equal(t, ClassPhoneUsage, m.Unify("Phone", model.ModelNameObjects))
	assert.Equal(t, "Handheld Phone", m.Unify("Phone", model.ModelNameBehaviors))

	var identity *UnificationMap
	assert.Equal(t, "Phone", identity.Unify("Phone", model.ModelNameObjects))
}

func TestCanonicalClasses(t *testing.T) {
	m := DefaultUnificationMap()
	extra := NewOutputClassSet(model.Name("extra"), "Yawning", "Cigarette")

	classes := m.CanonicalClasses(ObjectClasses(), BehaviorClasses(), extra)
	assert.Equal(t, []string{
		ClassDistracted,
		ClassDrinking,
		ClassDrowsy,
		ClassEating,
		ClassPhoneUsage,
		ClassSafeDriving,
		ClassSeatbelt,
		ClassSmoking,
		"Yawning",
	}, classes)
}
