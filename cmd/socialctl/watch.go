package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aeolun/socialite/pkg/client"
	"github.com/aeolun/socialite/pkg/protocol"
)

func createWatchCmd(flags *globalFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream realtime events until interrupted",
		Long: `Open the realtime connection for the stored session and print presence,
messages, typing and notifications as they arrive. Connection state
changes are printed too. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			a, err := flags.openApp(reg, client.Handlers{OnEvent: printEvent})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			session, err := a.Start(ctx)
			if err != nil {
				return err
			}
			if !session.Valid() {
				return errors.New("not signed in, run 'socialctl signin' first")
			}

			if metricsAddr == "" {
				metricsAddr = a.Config.Metrics.Listen
			}
			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr, reg)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			dim := color.New(color.Faint)
			for {
				select {
				case <-ctx.Done():
					color.Yellow("\nDisconnecting...")
					a.Realtime.Disconnect()
					return nil
				case update, ok := <-a.Realtime.StateChanges():
					if !ok {
						return nil
					}
					dim.Println(client.FormatStateUpdate(update))
					if update.New == client.StatusAuthFailed {
						return errors.New("session rejected by server, sign in again")
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (overrides [metrics] listen)")
	return cmd
}

// printEvent writes one realtime event, coloured by kind
func printEvent(evt protocol.Event) {
	line := client.FormatEvent(evt)
	switch evt.(type) {
	case protocol.NewMessage:
		color.Cyan("%s", line)
	case protocol.NewNotification, protocol.NotificationCount:
		color.Magenta("%s", line)
	case protocol.UserStatus:
		color.Blue("%s", line)
	case protocol.ServerError, protocol.Disconnect:
		color.Red("%s", line)
	default:
		color.White("%s", line)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			color.Red("metrics server: %v", err)
		}
	}()
	color.Green("Serving metrics on http://%s/metrics", addr)
	return srv
}
