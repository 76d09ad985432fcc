package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveDenialWins(t *testing.T) {
	set := Effective(
		[]string{"students.view", "students.edit", "grades.view"},
		nil,
		[]string{"students.edit"},
	)

	assert.True(t, set.Has("students.view"))
	assert.True(t, set.Has("grades.view"))
	assert.False(t, set.Has("students.edit"))
}

func TestEffectiveDenialBeatsCustomGrant(t *testing.T) {
	// A permission both granted as a custom override and denied resolves to
	// denied.
	set := Effective(
		[]string{"students.view"},
		[]string{"reports.export"},
		[]string{"reports.export"},
	)

	assert.False(t, set.Has("reports.export"))
	assert.True(t, set.Has("students.view"))
}

func TestEffectiveCustomGrantWithoutRoleEntry(t *testing.T) {
	set := Effective(
		[]string{"students.view"},
		[]string{"finance.invoices"},
		nil,
	)

	assert.True(t, set.Has("finance.invoices"))
}

func TestEffectiveEmptyInputs(t *testing.T) {
	set := Effective(nil, nil, nil)
	require.NotNil(t, set)
	assert.Empty(t, set.Names())
	assert.False(t, set.Has("anything"))
}

func TestEffectiveDenyAbsentPermissionIsNoop(t *testing.T) {
	set := Effective([]string{"students.view"}, nil, []string{"grades.edit"})
	assert.Equal(t, []string{"students.view"}, set.Names())
}

func TestSetHasAnyAndHasAll(t *testing.T) {
	set := Effective([]string{"students.view", "grades.view"}, nil, nil)

	assert.True(t, set.HasAny([]string{"missing.perm", "grades.view"}))
	assert.False(t, set.HasAny([]string{"missing.perm"}))
	assert.False(t, set.HasAny(nil), "empty any-list is false")

	assert.True(t, set.HasAll([]string{"students.view", "grades.view"}))
	assert.False(t, set.HasAll([]string{"students.view", "missing.perm"}))
	assert.True(t, set.HasAll(nil), "empty all-list is vacuously true")
}

func TestSetCanAccess(t *testing.T) {
	set := Effective([]string{"students.view", "dashboard"}, nil, nil)

	assert.True(t, set.CanAccess("students", "view"))
	assert.False(t, set.CanAccess("students", "edit"))
	assert.True(t, set.CanAccess("students", ""), "module query matches any action")
	assert.False(t, set.CanAccess("finance", ""))

	// Bare permission words live in the general module.
	assert.True(t, set.CanAccess("general", ""))
}

func TestSetNamesAndModulesSorted(t *testing.T) {
	set := Effective([]string{"grades.view", "students.view", "students.edit"}, nil, nil)

	assert.Equal(t, []string{"grades.view", "students.edit", "students.view"}, set.Names())
	assert.Equal(t, []string{"grades", "students"}, set.Modules())
}
