package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aeolun/socialite/pkg/app"
	"github.com/aeolun/socialite/pkg/client"
)

// Set at build time with -ldflags "-X main.version=v1.2.3"
var version = "dev"

type globalFlags struct {
	configPath string
	verbose    bool
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "socialctl",
		Short: "Socialite command-line client",
		Long: `A headless client for the Socialite social network.

It keeps a signed-in session on disk, talks to the REST API, and can hold
the realtime connection open to stream presence, messages and
notifications as they arrive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", client.DefaultConfigPath(), "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log requests and connection events to stderr")

	rootCmd.AddCommand(
		createSignInCmd(flags),
		createSignUpCmd(flags),
		createSignOutCmd(flags),
		createWhoAmICmd(flags),
		createWatchCmd(flags),
		createLikeCmd(flags),
		createCommentCmd(flags),
		createSendCmd(flags),
		createFriendCmd(flags),
		createNotificationsCmd(flags),
		createConfigCmd(flags),
		createVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var configErr *client.ConfigError
		if errors.As(err, &configErr) {
			reportConfigError(os.Stderr, configErr)
		} else {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (f *globalFlags) logger() *log.Logger {
	if !f.verbose {
		return nil
	}
	return log.New(os.Stderr, "socialctl: ", log.LstdFlags)
}

// openApp loads the config and builds the application context
func (f *globalFlags) openApp(reg prometheus.Registerer, handlers client.Handlers) (*app.App, error) {
	cfg, err := client.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.Options{
		Logger:     f.logger(),
		Registerer: reg,
		Handlers:   handlers,
	})
}

// reportConfigError explains a broken config file and how to recover
func reportConfigError(w io.Writer, err *client.ConfigError) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintln(w, "Configuration error")
	fmt.Fprintf(w, "  File: %s\n", err.Path)
	if err.LineNumber > 0 {
		fmt.Fprintf(w, "  Line: %d\n", err.LineNumber)
	}
	fmt.Fprintf(w, "\n%s\n\n", err.Message)
	color.New(color.FgYellow).Fprintf(w, "Fix the file, or run 'socialctl config reset --backup' to start from defaults.\n")
}
