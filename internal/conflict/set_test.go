package conflict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/conflict"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/state"
	"github.com/tradeview/settingsync/test/testutil"
)

func TestRecordAndList(t *testing.T) {
	backing := state.NewMockStore()
	set := conflict.New("u1", backing, testutil.NewTestLogger())

	c := testutil.Conflict(
		testutil.Change("u1", models.SettingProfile, "email", "a@x", "b@x", 10),
		testutil.Change("u1", models.SettingProfile, "email", "a@x", "c@x", 11),
	)
	set.Record(c)

	require.Equal(t, 1, set.Len())
	assert.Equal(t, c.ID, set.List()[0].ID)

	// Conflicts survive a restart against the same store.
	restarted := conflict.New("u1", backing, testutil.NewTestLogger())
	assert.Equal(t, 1, restarted.Len())
}

func TestResolveSynthesizesFollowUp(t *testing.T) {
	set := conflict.New("u1", state.NewMockStore(), testutil.NewTestLogger())

	local := testutil.Change("u1", models.SettingProfile, "email", "a@x", "b@x", 10)
	remote := testutil.Change("u1", models.SettingProfile, "email", "a@x", "c@x", 11)
	c := testutil.Conflict(local, remote)
	set.Record(c)

	follow, err := set.Resolve(c.ID, "d@x")
	require.NoError(t, err)

	assert.Equal(t, int64(12), follow.Version, "max(local, remote)+1")
	assert.Equal(t, "d@x", follow.NewValue)
	// The optimistically visible local value is the follow-up's old value.
	assert.Equal(t, "b@x", follow.OldValue)
	assert.Equal(t, models.SettingProfile, follow.SettingType)
	assert.Equal(t, "email", follow.SettingKey)
	assert.Equal(t, 0, set.Len())
}

func TestResolveMissingConflict(t *testing.T) {
	set := conflict.New("u1", state.NewMockStore(), testutil.NewTestLogger())

	_, err := set.Resolve("no-such-conflict", "x")
	assert.ErrorIs(t, err, models.ErrConflictNotFound)
}

func TestResolveTwiceReportsNotFound(t *testing.T) {
	set := conflict.New("u1", state.NewMockStore(), testutil.NewTestLogger())

	c := testutil.Conflict(
		testutil.Change("u1", models.SettingPrivacy, "share_data", true, false, 3),
		testutil.Change("u1", models.SettingPrivacy, "share_data", true, true, 5),
	)
	set.Record(c)

	_, err := set.Resolve(c.ID, false)
	require.NoError(t, err)

	_, err = set.Resolve(c.ID, false)
	assert.ErrorIs(t, err, models.ErrConflictNotFound)
}
