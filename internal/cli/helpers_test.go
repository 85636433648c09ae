package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/store"
)

const (
	testCatalog   = "../catalog/testdata/catalog.cue"
	testScenarios = "../harness/testdata/scenarios"
	testGoldens   = "../harness/testdata/golden"
)

// newTestOptions points the commands at a fresh SQLite file.
func newTestOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:      format,
		DBDriver:    "sqlite3",
		DatabaseURL: filepath.Join(t.TempDir(), "achievements.db"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// seedTestDB loads the test catalog into the options' database.
func seedTestDB(t *testing.T, opts *RootOptions) {
	t.Helper()
	_, err := execute(NewSeedCommand(opts), testCatalog)
	require.NoError(t, err)
}

// insertWorkout stores a 40 minute workout for user 7 in period 1.
func insertWorkout(t *testing.T, opts *RootOptions, id int64, start string, km float64) {
	t.Helper()
	st, err := store.Open(opts.DBDriver, opts.DatabaseURL)
	require.NoError(t, err)
	defer st.Close()

	started, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	_, err = st.InsertWorkout(context.Background(), achievement.Workout{
		ID:            id,
		UserID:        7,
		PeriodID:      1,
		StartedAt:     started,
		EndedAt:       started.Add(40 * time.Minute),
		Distance:      km,
		Duration:      40,
		WorkoutTypeID: 1,
		Active:        true,
	})
	require.NoError(t, err)
}
