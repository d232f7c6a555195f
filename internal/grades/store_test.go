package grades

import (
	"context"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shalteor/grade-calculator/internal/db"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupStore(t *testing.T) (*Store, *db.DB) {
	t.Helper()

	database, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "grade.db"),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.EnsureSchema(context.Background()))

	return NewStore(database, quietLogger()), database
}

func sampleHierarchy() []CategoryInput {
	return []CategoryInput{
		{
			ID:     "0",
			Name:   "exams",
			Weight: 35,
			Assignments: []AssignmentInput{
				{ID: "0", Name: "midterm1", Score: 90, Max: 100},
				{ID: "1", Name: "midterm2", Score: 95, Max: 100},
			},
		},
		{
			ID:     "1",
			Name:   "homework",
			Weight: 65,
			Assignments: []AssignmentInput{
				{ID: "0", Name: "hw1", Score: 10, Max: 10},
			},
		},
	}
}

// toInputs turns a loaded hierarchy back into save input for comparisons.
func toInputs(h Hierarchy) []CategoryInput {
	out := make([]CategoryInput, 0, len(h.Categories))
	for _, c := range h.Categories {
		in := CategoryInput{ID: c.ID, Name: c.Name, Weight: c.Weight, Assignments: []AssignmentInput{}}
		for _, a := range c.Assignments {
			in.Assignments = append(in.Assignments, AssignmentInput{ID: a.ID, Name: a.Name, Score: a.Score, Max: a.MaxScore})
		}
		out = append(out, in)
	}
	return out
}

func countRows(t *testing.T, database *db.DB, table, uid string) int {
	t.Helper()
	var n int
	col := "uid"
	if table == "users" {
		col = "id"
	}
	err := database.Get(&n, "SELECT COUNT(*) FROM "+table+" WHERE "+col+" = ?", uid)
	require.NoError(t, err)
	return n
}

func TestStore_LoadNotFound(t *testing.T) {
	store, _ := setupStore(t)

	result, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Hierarchy.Categories)
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	input := sampleHierarchy()
	res, err := store.Save(ctx, "alice", input)
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.False(t, res.Replaced)
	assert.Equal(t, "Data was successfully stored for alice.", res.Message)

	loaded, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, loaded.Found)
	assert.Equal(t, "alice", loaded.Hierarchy.Username)
	assert.ElementsMatch(t, input, toInputs(loaded.Hierarchy))
}

func TestStore_UsernamesAreCaseSensitive(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "Alice", sampleHierarchy())
	require.NoError(t, err)

	result, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestStore_FullReplace(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "alice", sampleHierarchy())
	require.NoError(t, err)

	replacement := []CategoryInput{
		{
			ID:     "5",
			Name:   "projects",
			Weight: 100,
			Assignments: []AssignmentInput{
				{ID: "3", Name: "capstone", Score: 41.5, Max: 50},
			},
		},
	}
	res, err := store.Save(ctx, "alice", replacement)
	require.NoError(t, err)
	assert.True(t, res.Replaced)

	loaded, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, loaded.Found)
	assert.Equal(t, replacement, toInputs(loaded.Hierarchy))

	assert.Equal(t, 1, countRows(t, database, "categories", "alice"))
	assert.Equal(t, 1, countRows(t, database, "assignments", "alice"))
}

func TestStore_EmptySaveIsNoop(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()

	t.Run("existing user keeps data", func(t *testing.T) {
		_, err := store.Save(ctx, "alice", sampleHierarchy())
		require.NoError(t, err)

		res, err := store.Save(ctx, "alice", nil)
		require.NoError(t, err)
		assert.False(t, res.Stored)
		assert.Equal(t, MessageNothingStored, res.Message)

		loaded, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		require.True(t, loaded.Found)
		assert.ElementsMatch(t, sampleHierarchy(), toInputs(loaded.Hierarchy))
	})

	t.Run("new user is not created", func(t *testing.T) {
		res, err := store.Save(ctx, "bob", []CategoryInput{})
		require.NoError(t, err)
		assert.False(t, res.Stored)
		assert.Equal(t, 0, countRows(t, database, "users", "bob"))
	})
}

func TestStore_DeleteCascades(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "alice", sampleHierarchy())
	require.NoError(t, err)
	_, err = store.Save(ctx, "bob", sampleHierarchy())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "alice"))

	assert.Equal(t, 0, countRows(t, database, "users", "alice"))
	assert.Equal(t, 0, countRows(t, database, "categories", "alice"))
	assert.Equal(t, 0, countRows(t, database, "assignments", "alice"))

	// Other users are untouched.
	assert.Equal(t, 2, countRows(t, database, "categories", "bob"))
	assert.Equal(t, 3, countRows(t, database, "assignments", "bob"))

	err = store.Delete(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_NextIDs(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	input := []CategoryInput{
		{ID: "0", Name: "a", Weight: 10, Assignments: []AssignmentInput{
			{ID: "0", Name: "x", Score: 1, Max: 1},
			{ID: "1", Name: "y", Score: 1, Max: 1},
		}},
		{ID: "1", Name: "b", Weight: 20},
		{ID: "3", Name: "c", Weight: 70, Assignments: []AssignmentInput{
			{ID: "9", Name: "z", Score: 0, Max: 5},
		}},
	}
	_, err := store.Save(ctx, "alice", input)
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, loaded.Found)

	assert.Equal(t, 4, loaded.Hierarchy.NextCategoryID)

	next := map[string]int{}
	for _, c := range loaded.Hierarchy.Categories {
		next[c.ID] = c.NextAssignmentID
	}
	assert.Equal(t, map[string]int{"0": 2, "1": 0, "3": 10}, next)
}

func TestStore_SaveIsAtomic(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "alice", sampleHierarchy())
	require.NoError(t, err)

	broken := []CategoryInput{
		{ID: "7", Name: "quizzes", Weight: 50, Assignments: []AssignmentInput{
			{ID: "0", Name: "q1", Score: 1, Max: 1},
			{ID: "0", Name: "q1 again", Score: 1, Max: 1},
		}},
	}
	_, err = store.Save(ctx, "alice", broken)
	require.Error(t, err)
	assert.True(t, IsStorage(err))

	loaded, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, loaded.Found)
	assert.ElementsMatch(t, sampleHierarchy(), toInputs(loaded.Hierarchy))
	assert.Equal(t, 2, countRows(t, database, "categories", "alice"))
	assert.Equal(t, 3, countRows(t, database, "assignments", "alice"))

	t.Run("new user is not left behind", func(t *testing.T) {
		_, err := store.Save(ctx, "carol", broken)
		require.Error(t, err)
		assert.Equal(t, 0, countRows(t, database, "users", "carol"))
	})
}

func TestStore_SaveRejectsInvalidInput(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		input    []CategoryInput
	}{
		{
			name:     "empty username",
			username: "",
			input:    sampleHierarchy(),
		},
		{
			name:     "non-numeric category id",
			username: "alice",
			input:    []CategoryInput{{ID: "exams", Name: "exams", Weight: 1}},
		},
		{
			name:     "non-numeric assignment id",
			username: "alice",
			input: []CategoryInput{{ID: "0", Name: "exams", Weight: 1, Assignments: []AssignmentInput{
				{ID: "a", Name: "midterm", Score: 1, Max: 1},
			}}},
		},
		{
			name:     "category id without a successor",
			username: "alice",
			input:    []CategoryInput{{ID: strconv.Itoa(math.MaxInt), Name: "exams", Weight: 1}},
		},
		{
			name:     "assignment id without a successor",
			username: "alice",
			input: []CategoryInput{{ID: "0", Name: "exams", Weight: 1, Assignments: []AssignmentInput{
				{ID: strconv.Itoa(math.MaxInt), Name: "midterm", Score: 1, Max: 1},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(ctx, tt.username, tt.input)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.False(t, IsStorage(err))
			assert.Equal(t, 0, countRows(t, database, "users", tt.username))
		})
	}
}

func TestStore_LoadRejectsStoredNonNumericID(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()

	database.MustExec(`INSERT INTO users (id) VALUES ('legacy')`)
	database.MustExec(`INSERT INTO categories (uid, id, name, weight) VALUES ('legacy', 'abc', 'misc', 10)`)

	_, err := store.Load(ctx, "legacy")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.True(t, IsStorage(err))
}

func TestStore_ForeignKeysEnforced(t *testing.T) {
	_, database := setupStore(t)

	_, err := database.Exec(`INSERT INTO categories (uid, id, name, weight) VALUES ('ghost', '0', 'exams', 10)`)
	assert.Error(t, err)
}
