package gate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	var actions []string
	for _, p := range r.Policies() {
		actions = append(actions, p.Action)
		assert.True(t, p.Governed, p.Action)
	}
	assert.Equal(t, []string{"acknowledge_warning", "assign_employee", "resolve_no_go", "unassign_employee", "update_station"}, actions)

	assign, ok := r.Lookup("assign_employee")
	require.True(t, ok)
	assert.True(t, assign.RequiresPolicy)
	assert.True(t, assign.BlockOnLegalStop)

	station, _ := r.Lookup("update_station")
	assert.True(t, station.ShiftContextExempt)

	_, ok = r.Lookup("delete_everything")
	assert.False(t, ok)
}

func TestNewRegistry_Invalid(t *testing.T) {
	_, err := NewRegistry(ActionPolicy{Action: " "})
	assert.ErrorContains(t, err, "no action name")

	_, err = NewRegistry(ActionPolicy{Action: "a", Governed: true}, ActionPolicy{Action: "a"})
	assert.ErrorContains(t, err, "declared twice")

	_, err = NewRegistry(ActionPolicy{Action: "a", Governed: true, BlockOnLegalStop: true})
	assert.ErrorContains(t, err, "does not require policy")
}

func TestLoadRegistry(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		r, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Len(t, r.Policies(), 5)
	})

	t.Run("empty path falls back to defaults", func(t *testing.T) {
		r, err := LoadRegistry("")
		require.NoError(t, err)
		assert.Len(t, r.Policies(), 5)
	})

	t.Run("file replaces defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "actions.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
actions:
  - action: close_line
    governed: true
    requires_token: true
  - action: reopen_line
    governed: false
`), 0o600))

		r, err := LoadRegistry(path)
		require.NoError(t, err)
		require.Len(t, r.Policies(), 2)

		closeLine, ok := r.Lookup("close_line")
		require.True(t, ok)
		assert.True(t, closeLine.RequiresToken)
		assert.False(t, closeLine.ShiftContextExempt)

		_, ok = r.Lookup("resolve_no_go")
		assert.False(t, ok)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "actions.yaml")
		require.NoError(t, os.WriteFile(path, []byte("actions: [oops"), 0o600))
		_, err := LoadRegistry(path)
		assert.ErrorContains(t, err, "parse action registry")
	})
}
