// Package cmd defines and implements the CLI commands for the diftar2energyid executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/diftar2energyid/internal/app"
	"github.com/JakeFAU/diftar2energyid/internal/config"
	"github.com/JakeFAU/diftar2energyid/internal/relay"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the application container.
type App interface {
	Close()
	GetLogger() *zap.Logger
	RowSource() relay.RowSource
	Runner(dryRun bool) *relay.Runner
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = func(path string) (App, error) {
	return app.NewApp(path)
}

// rootState carries what outlives cobra's execution: the config path flag
// and the app built for the subcommand, so errors can be logged with it.
type rootState struct {
	cfgFile string
	app     App
}

func newRootCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diftar2energyid",
		Short: "Relays Diftar waste weighings to EnergyID.",
		Long: `diftar2energyid logs in to the Diftar waste portal, reads the most recent
weighing records and forwards them, grouped per waste category, to an
EnergyID incoming webhook. Each invocation performs a single run.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(state.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", config.DefaultPath, "config file")
	cmd.AddCommand(newRelayCmd(), newRowsCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	state := &rootState{}
	cmd := newRootCmd(state)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	logger := fallbackLogger(stderr)
	if state.app != nil {
		logger = state.app.GetLogger()
		defer state.app.Close()
	}
	if err != nil {
		logger.Error("Command execution failed", zap.Error(err))
		return 1
	}
	return 0
}

// fallbackLogger reports failures that happen before the configured logger exists.
func fallbackLogger(w io.Writer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.ErrorLevel))
}
