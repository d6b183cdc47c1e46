package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/export"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type buildFlags struct {
	plain       bool
	out         string
	noSandbox   bool
	keepRunning bool
}

func newBuildCmd(a *app) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build <prompt>",
		Short: "Generate a project from a description and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, strings.Join(args, " "), f)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&f.plain, "plain", false, "Print progress as plain lines instead of the terminal UI")
	flags.StringVar(&f.out, "out", "", "Write the generated project to this directory")
	flags.BoolVar(&f.noSandbox, "no-sandbox", false, "Apply files only; command actions are skipped")
	flags.BoolVar(&f.keepRunning, "keep-running", false, "Keep the dev server up until interrupted")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, prompt string, f buildFlags) error {
	ctx := cmd.Context()
	p, err := a.deps.ProviderFactory(ctx, a.cfg)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	plain := f.plain || !isTerminal(cmd.OutOrStdout())
	if !plain {
		// Log lines would tear through the full-screen UI.
		a.log = a.log.WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel))
	}

	policy := applier.BestEffort
	if a.cfg.Pipeline.FailFast {
		policy = applier.FailFast
	}
	opts := workflow.Options{
		Provider: p,
		Catalog:  catalog,
		Session: sandbox.Options{
			InstallCommand: a.cfg.Sandbox.InstallCommand,
			DevCommand:     a.cfg.Sandbox.DevCommand,
			ReadyTimeout:   time.Duration(a.cfg.Sandbox.ReadyTimeoutSeconds) * time.Second,
		},
		Policy:            policy,
		ClassifyMaxTokens: a.cfg.Provider.ClassifyMaxTokens,
		ChatMaxTokens:     a.cfg.Provider.ChatMaxTokens,
		Logger:            a.log,
	}
	if !f.noSandbox {
		opts.NewRuntime = a.deps.RuntimeFactory(a.cfg.Sandbox, a.log)
	}

	m := workflow.NewManager(opts)
	defer func() {
		if err := m.Close(); err != nil {
			a.log.Warn("closing build", zap.Error(err))
		}
	}()

	b := m.Start(ctx, prompt)
	presenter := a.deps.Presenter(plain, cmd.OutOrStdout())
	if err := presenter.Present(ctx, prompt, b.Events(), b.Cancel); err != nil && ctx.Err() == nil {
		a.log.Warn("presenter stopped", zap.Error(err))
	}
	b.Cancel()
	res := b.Wait()

	if f.out != "" {
		written, err := export.Export(m.Tree(), f.out, export.Options{RespectGitignore: true})
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", len(written), f.out)
	}
	if res.Err != nil {
		return res.Err
	}

	if f.keepRunning && res.PreviewURL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "preview running at %s, press ctrl+c to stop\n", res.PreviewURL)
		<-ctx.Done()
	}
	return nil
}

// isTerminal reports whether w is an interactive terminal. Files such as
// /dev/null are not.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
