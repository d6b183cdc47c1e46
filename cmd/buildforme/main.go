// Package main provides the buildforme command-line interface: it serves the
// HTTP surface and runs builds from a prompt in the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/Cyclone1070/buildforme/internal/config"
	"github.com/Cyclone1070/buildforme/internal/provider"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/sandbox/executor"
	"github.com/Cyclone1070/buildforme/internal/ui"
	uiservices "github.com/Cyclone1070/buildforme/internal/ui/services"
	"github.com/Cyclone1070/buildforme/internal/workflow"
	"go.uber.org/zap"
)

// Dependencies holds the components required to run the application.
type Dependencies struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig      func(path string) (*config.Config, error)
	ProviderFactory func(ctx context.Context, cfg *config.Config) (provider.Provider, error)
	RuntimeFactory  func(cfg config.SandboxConfig, log *zap.Logger) workflow.RuntimeFactory
	Presenter       func(plain bool, out io.Writer) ui.Presenter
}

func defaultDependencies() Dependencies {
	return Dependencies{
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		LoadConfig:      loadConfig,
		ProviderFactory: createRealProvider,
		RuntimeFactory:  createRuntimeFactory,
		Presenter:       createPresenter,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.NewLoader().LoadFile(path)
	}
	return config.Load()
}

func createRealProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	return provider.New(ctx, cfg.Provider, cfg.APIKey(os.Getenv))
}

func createRuntimeFactory(cfg config.SandboxConfig, log *zap.Logger) workflow.RuntimeFactory {
	local := executor.LocalOptions{
		Dir:              cfg.WorkDir,
		MaxOutputBytes:   int(cfg.MaxOutputBytes),
		GracefulShutdown: time.Duration(cfg.GracefulShutdownMs) * time.Millisecond,
		Logger:           log,
	}
	if cfg.Runtime == "docker" {
		opts := executor.DockerOptions{
			Local: local,
			Image: cfg.DockerImage,
			Port:  cfg.DockerPort,
			Config: executor.DockerConfig{
				CheckCommand:  cfg.DockerCheckCommand,
				StartCommand:  cfg.DockerStartCommand,
				RetryAttempts: cfg.DockerRetryAttempts,
				RetryInterval: time.Duration(cfg.DockerRetryIntervalMs) * time.Millisecond,
			},
		}
		return func(ctx context.Context) (sandbox.Runtime, error) {
			d, err := executor.NewDocker(ctx, opts)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	}
	return func(context.Context) (sandbox.Runtime, error) {
		l, err := executor.NewLocal(local)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

func createPresenter(plain bool, out io.Writer) ui.Presenter {
	if plain {
		return ui.NewPlain(out)
	}
	return ui.NewUI(uiservices.NewGlamourRenderer(""), ui.DefaultSpinner)
}

func loadCatalog() (*archetype.Catalog, error) {
	catalog, err := archetype.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return catalog, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := defaultDependencies()
	if err := newRootCmd(deps).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
