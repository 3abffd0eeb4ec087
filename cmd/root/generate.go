package root

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gencommit/gencommit/pkg/cli"
	"github.com/gencommit/gencommit/pkg/commitmsg"
	"github.com/gencommit/gencommit/pkg/env"
	"github.com/gencommit/gencommit/pkg/model/provider"
	"github.com/gencommit/gencommit/pkg/model/provider/base"
	"github.com/gencommit/gencommit/pkg/usage"
	"github.com/gencommit/gencommit/pkg/userconfig"
	"github.com/gencommit/gencommit/pkg/vcs"
)

var (
	errNoStagedChanges = errors.New("no staged changes, stage files with git add first")
	errNotInteractive  = errors.New("stdin is not a terminal, use --yes to commit without review")
	errEmptyEdit       = errors.New("aborting commit due to empty commit message")
)

type generateFlags struct {
	yes            bool
	dryRun         bool
	provider       string
	model          string
	usageFile      string
	noMinuteLimits bool
}

type generateCmd struct {
	flags generateFlags

	workingDir  string
	loadConfig  func() (*userconfig.Config, error)
	newModel    func(ctx context.Context, cfg base.ModelConfig) (commitmsg.Model, error)
	editMessage func(ctx context.Context, message string) (string, error)
	trackerOpts []usage.Opt
}

func defaultGenerateCmd() *generateCmd {
	return &generateCmd{
		workingDir: ".",
		loadConfig: userconfig.Load,
		newModel: func(ctx context.Context, cfg base.ModelConfig) (commitmsg.Model, error) {
			return provider.New(ctx, cfg, env.NewDefaultProvider())
		},
		editMessage: func(ctx context.Context, message string) (string, error) {
			return cli.EditMessage(ctx, cli.EditorCommand(), message)
		},
	}
}

func newGenerateCmd() *cobra.Command {
	return defaultGenerateCmd().command()
}

func (g *generateCmd) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a commit message for the staged changes",
		Long: `Send the staged diff to the configured model, show the generated message
and commit it after review. Requests are checked against the local usage
quota before anything is sent.`,
		Example: `  gencommit generate
  gencommit -y
  gencommit --dry-run --provider openai --model gpt-4o`,
		Args: cobra.NoArgs,
		RunE: g.run,
	}

	cmd.Flags().BoolVarP(&g.flags.yes, "yes", "y", false, "Commit without asking for confirmation")
	cmd.Flags().BoolVar(&g.flags.dryRun, "dry-run", false, "Print the generated message without committing")
	cmd.Flags().StringVar(&g.flags.provider, "provider", "", "Model provider: google or openai (default: from config, then google)")
	cmd.Flags().StringVar(&g.flags.model, "model", "", "Model name (default: from config, then the provider default)")
	cmd.Flags().StringVar(&g.flags.usageFile, "usage-file", usage.DefaultFileName, "Path of the usage file, relative to the working directory")
	cmd.Flags().BoolVar(&g.flags.noMinuteLimits, "no-minute-limits", false, "Only enforce the daily request limit")

	return cmd
}

func (g *generateCmd) run(cmd *cobra.Command, _ []string) error {
	ctx, span := otel.Tracer(AppName).Start(cmd.Context(), "gencommit.generate")
	defer span.End()

	out := cli.NewPrinter(cmd.OutOrStdout())
	errOut := cli.NewPrinter(cmd.ErrOrStderr())
	fail := func(err error) error {
		errOut.PrintError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return RuntimeError{Err: err}
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	maxDiff, err := cfg.MaxDiffBytes()
	if err != nil {
		return err
	}
	var repoOpts []vcs.Opt
	if maxDiff > 0 {
		repoOpts = append(repoOpts, vcs.WithMaxDiffBytes(maxDiff))
	}

	repo, err := vcs.Open(g.workingDir, repoOpts...)
	if err != nil {
		return fail(err)
	}

	diff, err := repo.StagedDiff(ctx)
	if err != nil {
		return fail(err)
	}
	if diff == "" {
		return fail(errNoStagedChanges)
	}
	span.SetAttributes(attribute.Int("diff.bytes", len(diff)))

	interactive := !g.flags.dryRun && !g.flags.yes
	if interactive && !cli.IsInteractive(cmd.InOrStdin()) {
		return fail(errNotInteractive)
	}

	tracker := g.tracker(cfg)
	if _, err := tracker.Admit(ctx); err != nil {
		return fail(err)
	}

	model, err := g.newModel(ctx, g.modelConfig(cfg))
	if err != nil {
		if _, ok := errors.AsType[*env.RequiredEnvError](err); ok {
			return err
		}
		return fail(err)
	}
	span.SetAttributes(attribute.String("model", model.ID()))

	result, err := g.generate(ctx, model, cfg.Emoji, diff)
	if err != nil {
		return fail(err)
	}

	if _, err := tracker.RecordSuccess(ctx, result.TokensUsed); err != nil {
		slog.Warn("Failed to record usage", "path", tracker.Path(), "error", err)
		errOut.PrintWarning("Could not record usage: %v", err)
	}

	out.PrintMessage(cmp.Or(result.Model, model.ID()), result.Message)
	if g.flags.dryRun {
		return nil
	}

	message := result.Message
	if interactive {
		var ok bool
		message, ok, err = g.review(ctx, out, bufio.NewReader(cmd.InOrStdin()), message)
		if err != nil {
			return fail(err)
		}
		if !ok {
			out.PrintWarning("Commit aborted")
			return nil
		}
	}

	output, err := repo.Commit(ctx, message)
	if err != nil {
		return fail(err)
	}

	slog.Debug("Committed", "output", output)
	out.PrintSuccess("Committed")
	if output != "" {
		out.Println(output)
	}
	return nil
}

// review loops until the user commits or aborts, opening the editor on
// request. The returned message is the one to commit.
func (g *generateCmd) review(ctx context.Context, out *cli.Printer, in *bufio.Reader, message string) (string, bool, error) {
	for {
		switch out.PromptReview(ctx, in) {
		case cli.ReviewCommit:
			return message, true, nil
		case cli.ReviewAbort:
			return "", false, nil
		case cli.ReviewEdit:
			edited, err := g.editMessage(ctx, message)
			if err != nil {
				return "", false, err
			}
			if strings.TrimSpace(edited) == "" {
				return "", false, errEmptyEdit
			}
			message = edited
			out.PrintMessage("edited", message)
		}
	}
}

func (g *generateCmd) generate(ctx context.Context, model commitmsg.Model, emoji bool, diff string) (*commitmsg.Result, error) {
	ctx, span := otel.Tracer(AppName).Start(ctx, "gencommit.model", trace.WithAttributes(
		attribute.String("model", model.ID()),
	))
	defer span.End()

	result, err := commitmsg.New(model, commitmsg.WithEmoji(emoji)).Generate(ctx, diff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("tokens", result.TokensUsed))
	span.SetStatus(codes.Ok, "generated")
	return result, nil
}

func (g *generateCmd) tracker(cfg *userconfig.Config) *usage.Tracker {
	limits := usage.DefaultLimits()
	limits.EnforcePerMinute = cfg.MinuteLimitsEnforced() && !g.flags.noMinuteLimits

	opts := append([]usage.Opt{usage.WithLimits(limits)}, g.trackerOpts...)
	return usage.New(usagePath(g.workingDir, g.flags.usageFile), opts...)
}

// modelConfig merges flags over the user config. A --provider flag that
// differs from the configured provider drops the configured model and base
// URL. Sampling settings apply to whichever provider is used.
func (g *generateCmd) modelConfig(cfg *userconfig.Config) base.ModelConfig {
	mc := base.ModelConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	}
	if g.flags.provider != "" && g.flags.provider != cfg.Provider {
		mc = base.ModelConfig{Provider: g.flags.provider}
	}
	mc.Model = cmp.Or(g.flags.model, mc.Model)
	mc.MaxTokens = cfg.MaxTokens
	mc.Temperature = cfg.Temperature
	return mc
}

func usagePath(workingDir, file string) string {
	file = cmp.Or(file, usage.DefaultFileName)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(workingDir, file)
}

