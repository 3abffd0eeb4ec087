package root

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gencommit/gencommit/pkg/chat"
	"github.com/gencommit/gencommit/pkg/commitmsg"
	"github.com/gencommit/gencommit/pkg/env"
	"github.com/gencommit/gencommit/pkg/model/provider/base"
	"github.com/gencommit/gencommit/pkg/usage"
	"github.com/gencommit/gencommit/pkg/userconfig"
)

type fakeModel struct {
	response *chat.Response
	err      error
	calls    int
	messages []chat.Message
}

func (m *fakeModel) ID() string { return "fake/model" }

func (m *fakeModel) CreateChatCompletion(_ context.Context, messages []chat.Message) (*chat.Response, error) {
	m.calls++
	m.messages = messages
	return m.response, m.err
}

func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// stagedRepo creates a repository with one commit and one staged change.
func stagedRepo(t *testing.T, stage bool) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Test"
	cfg.User.Email = "test@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	_, err = worktree.Add("README.md")
	require.NoError(t, err)
	_, err = worktree.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	if stage {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.go"), []byte("package hello\n"), 0o644))
		_, err = worktree.Add("hello.go")
		require.NoError(t, err)
	}

	return dir, repo
}

func headMessage(t *testing.T, repo *git.Repository) string {
	t.Helper()

	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	return strings.TrimSpace(commit.Message)
}

func newTestGenerateCmd(dir string, model *fakeModel) *generateCmd {
	return &generateCmd{
		workingDir: dir,
		loadConfig: func() (*userconfig.Config, error) { return &userconfig.Config{}, nil },
		newModel: func(context.Context, base.ModelConfig) (commitmsg.Model, error) {
			return model, nil
		},
		editMessage: func(context.Context, string) (string, error) {
			return "", errors.New("editor not expected")
		},
	}
}

func runGenerate(t *testing.T, g *generateCmd, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := g.command()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func readUsage(t *testing.T, dir string) usage.Record {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, usage.DefaultFileName))
	require.NoError(t, err)

	var record usage.Record
	require.NoError(t, json.Unmarshal(data, &record))
	return record
}

func writeUsage(t *testing.T, dir string, record usage.Record) {
	t.Helper()

	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, usage.DefaultFileName), data, 0o644))
}

func okModel() *fakeModel {
	return &fakeModel{response: &chat.Response{
		Content: "feat: add hello package",
		Model:   "fake-model-001",
		Usage:   &chat.Usage{InputTokens: 200, OutputTokens: 50},
	}}
}

func TestGenerate_DryRun(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)
	model := okModel()

	stdout, _, err := runGenerate(t, newTestGenerateCmd(dir, model), nil, "--dry-run")
	require.NoError(t, err)

	assert.Equal(t, 1, model.calls)
	assert.Contains(t, stdout, "feat: add hello package")
	assert.Contains(t, stdout, "fake-model-001")
	assert.Equal(t, "initial", headMessage(t, repo))

	record := readUsage(t, dir)
	assert.Equal(t, int64(1), record.Requests)
	assert.Equal(t, int64(250), record.Tokens)
}

func TestGenerate_YesCommits(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)

	stdout, _, err := runGenerate(t, newTestGenerateCmd(dir, okModel()), nil, "-y")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Committed")
	assert.Equal(t, "feat: add hello package", headMessage(t, repo))
}

func TestGenerate_ReviewEditThenCommit(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)
	g := newTestGenerateCmd(dir, okModel())
	g.editMessage = func(_ context.Context, message string) (string, error) {
		assert.Equal(t, "feat: add hello package", message)
		return "feat(hello): add package", nil
	}

	stdout, _, err := runGenerate(t, g, strings.NewReader("e\ny\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(stdout, "Commit with this message?"))
	assert.Equal(t, "feat(hello): add package", headMessage(t, repo))
}

func TestGenerate_ReviewAbortStillRecordsUsage(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)

	stdout, _, err := runGenerate(t, newTestGenerateCmd(dir, okModel()), strings.NewReader("n\n"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Commit aborted")
	assert.Equal(t, "initial", headMessage(t, repo))
	assert.Equal(t, int64(1), readUsage(t, dir).Requests)
}

func TestGenerate_EmptyEditAborts(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)
	g := newTestGenerateCmd(dir, okModel())
	g.editMessage = func(context.Context, string) (string, error) { return "  \n", nil }

	_, stderr, err := runGenerate(t, g, strings.NewReader("e\n"))
	require.ErrorIs(t, err, errEmptyEdit)
	assert.Contains(t, stderr, "empty commit message")
	assert.Equal(t, "initial", headMessage(t, repo))
}

func TestGenerate_NonInteractiveWithoutYes(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)

	stdin, err := os.Open(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	t.Cleanup(func() { stdin.Close() })

	model := okModel()
	_, _, err = runGenerate(t, newTestGenerateCmd(dir, model), stdin)
	require.ErrorIs(t, err, errNotInteractive)
	assert.Equal(t, "initial", headMessage(t, repo))
	assert.Equal(t, 0, model.calls)

	_, statErr := os.Stat(filepath.Join(dir, usage.DefaultFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_NonInteractiveDryRunAndYes(t *testing.T) {
	t.Parallel()
	requireGit(t)

	tests := []struct {
		name       string
		args       []string
		wantCommit bool
	}{
		{"dry run", []string{"--dry-run"}, false},
		{"yes", []string{"--yes"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir, repo := stagedRepo(t, true)
			stdin, err := os.Open(filepath.Join(dir, "README.md"))
			require.NoError(t, err)
			t.Cleanup(func() { stdin.Close() })

			model := okModel()
			_, _, err = runGenerate(t, newTestGenerateCmd(dir, model), stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, 1, model.calls)
			assert.Equal(t, int64(1), readUsage(t, dir).Requests)
			if tt.wantCommit {
				assert.Equal(t, "feat: add hello package", headMessage(t, repo))
			} else {
				assert.Equal(t, "initial", headMessage(t, repo))
			}
		})
	}
}

func TestGenerate_NoStagedChanges(t *testing.T) {
	t.Parallel()

	dir, _ := stagedRepo(t, false)
	model := okModel()

	_, stderr, err := runGenerate(t, newTestGenerateCmd(dir, model), nil, "-y")
	require.ErrorIs(t, err, errNoStagedChanges)
	assert.IsType(t, RuntimeError{}, err)
	assert.Contains(t, stderr, "no staged changes")
	assert.Equal(t, 0, model.calls)

	_, statErr := os.Stat(filepath.Join(dir, usage.DefaultFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_DailyQuotaExceeded(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, repo := stagedRepo(t, true)
	writeUsage(t, dir, usage.Record{Requests: 1500, Timestamp: time.Now().Add(-time.Second).UnixMilli()})
	model := okModel()

	_, stderr, err := runGenerate(t, newTestGenerateCmd(dir, model), nil, "-y")
	require.ErrorIs(t, err, usage.ErrQuotaExceeded)
	assert.Contains(t, stderr, "daily request limit exceeded")
	assert.Equal(t, 0, model.calls)
	assert.Equal(t, "initial", headMessage(t, repo))
	assert.Equal(t, int64(1500), readUsage(t, dir).Requests)
}

func TestGenerate_MinuteLimitToggle(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	now := time.Now()
	recent := make([]usage.Event, usage.RequestsPerMinute)
	for i := range recent {
		recent[i] = usage.Event{Timestamp: now.Add(-time.Second).UnixMilli(), Tokens: 1}
	}
	writeUsage(t, dir, usage.Record{Requests: int64(len(recent)), Tokens: int64(len(recent)), Timestamp: now.UnixMilli(), Recent: recent})

	model := okModel()
	_, stderr, err := runGenerate(t, newTestGenerateCmd(dir, model), nil, "--dry-run")
	require.ErrorIs(t, err, usage.ErrQuotaExceeded)
	assert.Contains(t, stderr, "per-minute request limit exceeded")
	assert.Equal(t, 0, model.calls)

	_, _, err = runGenerate(t, newTestGenerateCmd(dir, model), nil, "--dry-run", "--no-minute-limits")
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, int64(usage.RequestsPerMinute+1), readUsage(t, dir).Requests)
}

func TestGenerate_CorruptUsageFile(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	usageFile := filepath.Join(dir, usage.DefaultFileName)
	require.NoError(t, os.WriteFile(usageFile, []byte("{oops"), 0o644))
	model := okModel()

	_, _, err := runGenerate(t, newTestGenerateCmd(dir, model), nil, "--dry-run")
	require.ErrorIs(t, err, usage.ErrStorageRead)
	assert.Equal(t, 0, model.calls)

	data, err := os.ReadFile(usageFile)
	require.NoError(t, err)
	assert.Equal(t, "{oops", string(data))
}

func TestGenerate_GenerationErrorDoesNotRecordUsage(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	model := &fakeModel{err: errors.New("503 service unavailable")}

	_, stderr, err := runGenerate(t, newTestGenerateCmd(dir, model), nil, "--dry-run")
	require.ErrorIs(t, err, commitmsg.ErrGeneration)
	assert.Contains(t, stderr, "503 service unavailable")

	_, statErr := os.Stat(filepath.Join(dir, usage.DefaultFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	g := newTestGenerateCmd(dir, nil)
	g.newModel = func(context.Context, base.ModelConfig) (commitmsg.Model, error) {
		return nil, &env.RequiredEnvError{Missing: []string{"GEMINI_API_KEY"}}
	}

	_, _, err := runGenerate(t, g, nil, "--dry-run")

	_, ok := errors.AsType[*env.RequiredEnvError](err)
	assert.True(t, ok)
	_, isRuntime := errors.AsType[RuntimeError](err)
	assert.False(t, isRuntime, "missing keys are reported by processErr")
}

func TestGenerate_UsageWriteFailureIsWarning(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	g := newTestGenerateCmd(dir, okModel())
	g.trackerOpts = []usage.Opt{usage.WithLockTimeout(20 * time.Millisecond)}

	// A fresh lock held by someone else makes the update time out.
	require.NoError(t, os.WriteFile(filepath.Join(dir, usage.DefaultFileName+".lock"), []byte("1"), 0o644))

	stdout, stderr, err := runGenerate(t, g, nil, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "feat: add hello package")
	assert.Contains(t, stderr, "Could not record usage")
}

func TestGenerate_MaxDiffSizeFromConfig(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	model := okModel()
	g := newTestGenerateCmd(dir, model)
	g.loadConfig = func() (*userconfig.Config, error) {
		return &userconfig.Config{MaxDiffSize: "16"}, nil
	}

	_, _, err := runGenerate(t, g, nil, "--dry-run")
	require.NoError(t, err)

	require.Len(t, model.messages, 2)
	assert.Contains(t, model.messages[1].Content, "diff truncated")
}

func TestGenerateCmd_ModelConfig(t *testing.T) {
	t.Parallel()

	cfg := &userconfig.Config{Provider: "openai", Model: "gpt-4o", BaseURL: "http://localhost:8080/v1"}

	tests := []struct {
		name  string
		flags generateFlags
		want  base.ModelConfig
	}{
		{
			name: "config only",
			want: base.ModelConfig{Provider: "openai", Model: "gpt-4o", BaseURL: "http://localhost:8080/v1"},
		},
		{
			name:  "model flag overrides config",
			flags: generateFlags{model: "gpt-4.1"},
			want:  base.ModelConfig{Provider: "openai", Model: "gpt-4.1", BaseURL: "http://localhost:8080/v1"},
		},
		{
			name:  "same provider keeps config",
			flags: generateFlags{provider: "openai"},
			want:  base.ModelConfig{Provider: "openai", Model: "gpt-4o", BaseURL: "http://localhost:8080/v1"},
		},
		{
			name:  "other provider drops config model",
			flags: generateFlags{provider: "google"},
			want:  base.ModelConfig{Provider: "google"},
		},
		{
			name:  "other provider with model",
			flags: generateFlags{provider: "google", model: "gemini-2.5-flash"},
			want:  base.ModelConfig{Provider: "google", Model: "gemini-2.5-flash"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := &generateCmd{flags: tt.flags}
			assert.Equal(t, tt.want, g.modelConfig(cfg))
		})
	}
}

func TestGenerateCmd_ModelConfigSampling(t *testing.T) {
	t.Parallel()

	temperature := 0.3
	cfg := &userconfig.Config{Provider: "openai", Model: "gpt-4o", MaxTokens: 120, Temperature: &temperature}

	tests := []struct {
		name  string
		flags generateFlags
		want  base.ModelConfig
	}{
		{
			name: "config provider",
			want: base.ModelConfig{Provider: "openai", Model: "gpt-4o", MaxTokens: 120, Temperature: &temperature},
		},
		{
			name:  "other provider keeps sampling",
			flags: generateFlags{provider: "google"},
			want:  base.ModelConfig{Provider: "google", MaxTokens: 120, Temperature: &temperature},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := &generateCmd{flags: tt.flags}
			assert.Equal(t, tt.want, g.modelConfig(cfg))
		})
	}
}

func TestGenerate_PassesSamplingToModel(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir, _ := stagedRepo(t, true)
	model := okModel()
	g := newTestGenerateCmd(dir, model)
	g.loadConfig = func() (*userconfig.Config, error) {
		temperature := 0.5
		return &userconfig.Config{Provider: "google", MaxTokens: 64, Temperature: &temperature}, nil
	}
	var got base.ModelConfig
	g.newModel = func(_ context.Context, mc base.ModelConfig) (commitmsg.Model, error) {
		got = mc
		return model, nil
	}

	_, _, err := runGenerate(t, g, nil, "--dry-run")
	require.NoError(t, err)

	assert.Equal(t, 64, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.5, *got.Temperature, 0.0001)
}

func TestUsagePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("repo", usage.DefaultFileName), usagePath("repo", ""))
	assert.Equal(t, filepath.Join("repo", "custom.json"), usagePath("repo", "custom.json"))

	abs := filepath.Join(t.TempDir(), "usage.json")
	assert.Equal(t, abs, usagePath("repo", abs))
}
