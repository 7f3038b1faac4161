package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/app"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/builder"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/config"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, step app.Step, rebuild bool) (builder.Summary, error) {
	args := m.Called(ctx, step, rebuild)
	return args.Get(0).(builder.Summary), args.Error(1)
}

func (m *mockRunner) Logger() *zap.Logger { return zap.NewNop() }

func (m *mockRunner) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// withRunner swaps the application factory for the duration of a test.
func withRunner(t *testing.T, runner *mockRunner, seen *config.Config) {
	t.Helper()
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (Runner, error) {
		if seen != nil {
			*seen = cfg
		}
		return runner, nil
	}
	t.Cleanup(func() { newApp = orig })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(args ...string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestPoetsCommandRunsPoetStep(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, app.StepPoets, false).Return(builder.Summary{PoetsInRoster: 3}, nil)
	runner.On("Close", mock.Anything).Return(nil)
	withRunner(t, runner, nil)

	require.NoError(t, execute("poets", "--config", writeConfig(t, "logging:\n  development: false\n")))
	runner.AssertExpectations(t)
}

func TestPoemsCommandAppliesPoetFilter(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, app.StepPoems, false).Return(builder.Summary{}, nil)
	runner.On("Close", mock.Anything).Return(nil)
	var cfg config.Config
	withRunner(t, runner, &cfg)

	require.NoError(t, execute("poems", "--poet", "victor-hugo", "--poet", "paul-verlaine"))
	assert.Equal(t, []string{"victor-hugo", "paul-verlaine"}, cfg.Builder.Poets)
	runner.AssertExpectations(t)
}

func TestAllCommandRebuildDefaultsFromConfig(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, app.StepAll, false).Return(builder.Summary{}, nil)
	runner.On("Close", mock.Anything).Return(nil)
	withRunner(t, runner, nil)

	require.NoError(t, execute("all", "--config", writeConfig(t, "builder:\n  rebuild: false\n")))
	runner.AssertExpectations(t)
}

func TestAllCommandRebuildFlagWins(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, app.StepAll, true).Return(builder.Summary{}, nil)
	runner.On("Close", mock.Anything).Return(nil)
	withRunner(t, runner, nil)

	require.NoError(t, execute("all", "--rebuild", "--config", writeConfig(t, "builder:\n  rebuild: false\n")))
	runner.AssertExpectations(t)
}

func TestRunFailureIsReturnedAndAppClosed(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, app.StepPoems, false).Return(builder.Summary{}, errors.New("store down"))
	runner.On("Close", mock.Anything).Return(nil)
	withRunner(t, runner, nil)

	root := NewRootCmd()
	root.SetArgs([]string{"poems"})
	root.SetErr(new(discard))
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "store down")
	runner.AssertExpectations(t)
}

func TestInvalidConfigFailsBeforeBuildingApp(t *testing.T) {
	called := false
	orig := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (Runner, error) {
		called = true
		return nil, errors.New("unreachable")
	}
	t.Cleanup(func() { newApp = orig })

	root := NewRootCmd()
	root.SetArgs([]string{"poets", "--config", writeConfig(t, "store:\n  driver: duckdb\n")})
	root.SetErr(new(discard))
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "store.driver")
	assert.False(t, called)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
