package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validActivity(id string) Activity {
	return Activity{ID: id, DisplayName: id, Category: "seller-approval", TaskType: id, Timeout: "30s", Retries: 3}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	reg := &ActivityRegistry{Version: "1.0.0", Activities: []Activity{validActivity("validate-batch")}}

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Save(path, at))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:00:00Z", loaded.LastUpdated)
	require.Len(t, loaded.Activities, 1)

	a, err := loaded.Find("validate-batch")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, a.TimeoutOr(time.Minute))

	_, err = loaded.Find("nope")
	assert.ErrorIs(t, err, ErrActivityNotFound)
}

func TestLoadRegistry_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dup := validActivity("a")
	noName := validActivity("b")
	noName.DisplayName = ""
	badTimeout := validActivity("c")
	badTimeout.Timeout = "soon"

	reg := &ActivityRegistry{Activities: []Activity{validActivity("a"), dup, noName, badTimeout, {}}}
	problems := reg.Validate()

	assert.Contains(t, problems, "duplicate activity id: a")
	assert.Contains(t, problems, "duplicate taskType: a")
	assert.Contains(t, problems, "activity b missing required field: displayName")
	assert.Contains(t, problems, `activity c has invalid timeout "soon"`)
	assert.Contains(t, problems, "activity at index 4 missing required field: id")

	assert.Equal(t, []string{"registry contains no activities"}, (&ActivityRegistry{}).Validate())
	assert.Empty(t, (&ActivityRegistry{Activities: []Activity{validActivity("x")}}).Validate())
}

func TestTimeoutOr(t *testing.T) {
	assert.Equal(t, time.Minute, Activity{}.TimeoutOr(time.Minute))
	assert.Equal(t, time.Minute, Activity{Timeout: "-1s"}.TimeoutOr(time.Minute))
	assert.Equal(t, 2*time.Second, Activity{Timeout: "2s"}.TimeoutOr(time.Minute))
}
