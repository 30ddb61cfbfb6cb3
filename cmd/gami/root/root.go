package root

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/warp/gami-engine/bootstrap"
	"github.com/warp/gami-engine/config"
)

const Version = "0.1.0"

// NewRootCmd builds the gami command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "gami",
		Short:         "Gami: quests, xp and rewards from the terminal",
		Long:          "gami drives the local progression state: log in, complete quests, inspect the wallet.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configPath, "config", "gami.yaml", "YAML config file")

	open := func(cmd *cobra.Command) (*bootstrap.App, func(), error) {
		return openApp(cmd, configPath)
	}

	cmd.AddCommand(
		newStatusCmd(open),
		newQuestsCmd(open),
		newCompleteCmd(open),
		newWalletCmd(open),
		newTransactionsCmd(open),
		newTransferCmd(open),
		newLoginCmd(open),
		newLogoutCmd(open),
	)
	return cmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render(iconError+" "+err.Error()))
		os.Exit(1)
	}
}

type opener func(cmd *cobra.Command) (*bootstrap.App, func(), error)

// openApp wires and initializes a Manager for one command. Logs go to
// stderr so stdout stays readable.
func openApp(cmd *cobra.Command, configPath string) (*bootstrap.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := cfg.Log.NewLogger()
	log.SetOutput(cmd.ErrOrStderr())

	ctx := commandContext(cmd)
	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{
		OpenBrowser: func(url string) error {
			fmt.Fprintln(cmd.OutOrStdout(), labelValue("Open to log in", url))
			if err := browser.OpenURL(url); err != nil {
				log.WithError(err).Debug("could not open a browser")
			}
			return nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	app.Manager.Initialize(ctx)

	cleanup := func() {
		_ = app.Close()
	}
	return app, cleanup, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
