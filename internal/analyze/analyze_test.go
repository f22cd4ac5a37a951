package analyze

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"optionsql/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	ran    []string
	failOn string
}

func (e *recordingExecutor) Exec(_ context.Context, sql string) error {
	if sql == e.failOn {
		return errors.New("relation does not exist")
	}
	e.ran = append(e.ran, sql)
	return nil
}

func scriptDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "99_nested.sql"), 0o700))
	return dir
}

func TestRunExecutesScriptsInNameOrder(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"20_expirations.sql": "REFRESH MATERIALIZED VIEW ticker_expirations;",
		"10_clean.sql":       "DELETE FROM optionchains WHERE expiration_date < CURRENT_DATE;",
		"README.md":          "not sql",
	})
	exec := &recordingExecutor{}
	svc, err := New(exec, dir)
	require.NoError(t, err)

	report, err := svc.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"10_clean.sql", "20_expirations.sql"}, report.Executed)
	assert.Equal(t, []string{
		"DELETE FROM optionchains WHERE expiration_date < CURRENT_DATE;",
		"REFRESH MATERIALIZED VIEW ticker_expirations;",
	}, exec.ran)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	dir := scriptDir(t, map[string]string{
		"1.sql": "SELECT 1;",
		"2.sql": "SELECT * FROM missing;",
		"3.sql": "SELECT 3;",
	})
	exec := &recordingExecutor{failOn: "SELECT * FROM missing;"}
	svc, err := New(exec, dir)
	require.NoError(t, err)

	report, err := svc.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2.sql")
	assert.Equal(t, []string{"1.sql"}, report.Executed)
	assert.Equal(t, []string{"SELECT 1;"}, exec.ran)
}

func TestRunEmptyDirAndCancel(t *testing.T) {
	svc, err := New(&recordingExecutor{}, t.TempDir())
	require.NoError(t, err)
	report, err := svc.Run(t.Context())
	require.NoError(t, err)
	assert.Empty(t, report.Executed)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	svc, err = New(&recordingExecutor{}, scriptDir(t, map[string]string{"1.sql": "SELECT 1;"}))
	require.NoError(t, err)
	_, err = svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	svc, err = New(&recordingExecutor{}, filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	_, err = svc.Run(t.Context())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "sql")
	assert.ErrorIs(t, err, exception.ErrAnalyzeNilExecutor)
	_, err = New(&recordingExecutor{}, "")
	assert.ErrorIs(t, err, exception.ErrAnalyzeNoDir)
}
