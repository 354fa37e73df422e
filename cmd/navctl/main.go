// Command navctl drives a headless NavigatorCore for manual smoke
// testing: bring up the lifecycle, register the cognitive and intent
// analyzers, optionally serve the devbridge debug endpoints, and feed
// it synthetic input from the terminal.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/navigator-sdk/navigator/cognitive"
	"github.com/navigator-sdk/navigator/core"
	"github.com/navigator-sdk/navigator/devbridge"
	"github.com/navigator-sdk/navigator/eventbus"
	"github.com/navigator-sdk/navigator/history"
	"github.com/navigator-sdk/navigator/intent"
	"github.com/navigator-sdk/navigator/logger"
	"github.com/navigator-sdk/navigator/plugin"
	"github.com/navigator-sdk/navigator/store"
)

var version = "0.1.0"

func main() {
	var logLevel string
	var pretty bool

	root := &cobra.Command{
		Use:   "navctl",
		Short: "Drive a Navigator core from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Initialize(logLevel, pretty)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&pretty, "pretty", true, "pretty-print console logs")

	root.AddCommand(versionCmd(), runCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print navctl's version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("navctl v%s\n", version)
		},
	}
}

func runCmd() *cobra.Command {
	var devbridgeAddr string
	var simulate bool
	var historySize int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a Navigator core and keep it running until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), devbridgeAddr, simulate, historySize)
		},
	}
	cmd.Flags().StringVar(&devbridgeAddr, "devbridge-addr", ":8088", "address to serve devbridge debug endpoints on, empty to disable")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "feed synthetic navigation/gesture actions for a smoke test")
	cmd.Flags().IntVar(&historySize, "history-size", 200, "UserSessionHistory ring buffer capacity")
	return cmd
}

func run(parentCtx context.Context, devbridgeAddr string, simulate bool, historySize int) error {
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := core.New(core.WithHistoryMaxSize(historySize))

	cog := cognitive.New(cognitive.DefaultConfig())
	c.RegisterPlugin(cog, plugin.WithPriority(150))

	predictor := intent.New(intent.DefaultConfig())
	c.RegisterPlugin(predictor, plugin.WithPriority(140))

	c.EventBus().On(eventbus.Wildcard, func(ev eventbus.Event) {
		logger.Core().Info().Str("event", ev.Name).Interface("payload", ev.Payload).Msg("event")
	})

	if err := c.Init(ctx); err != nil {
		return fmt.Errorf("navctl: init: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("navctl: start: %w", err)
	}
	defer c.Stop(context.Background())

	if devbridgeAddr != "" {
		srv := devbridge.New(c)
		go func() {
			if err := srv.Run(ctx, devbridgeAddr); err != nil {
				logger.Core().Error().Err(err).Msg("devbridge server exited")
			}
		}()
	}

	if simulate {
		go simulateActivity(ctx, c, predictor)
	}

	<-ctx.Done()
	return nil
}

// simulateActivity feeds a rough mix of navigations, a gesture
// trajectory, and action outcomes so a developer watching /ws or
// stdout logs can see the cognitive/intent plugins react to load
// without a real input device attached.
func simulateActivity(ctx context.Context, c *core.Core, predictor *intent.Predictor) {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	x := 0.1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Store().Dispatch(store.Navigate(store.DirRight, store.SourceMock))
			success := rand.Float64() > 0.3
			c.RecordAction(history.NewAction("navigate:next", success))

			x += 0.05
			if x > 0.9 {
				x = 0.1
				predictor.Reset()
			}
			predictor.Sample(intent.Point{X: x, Y: 0.5})
		}
	}
}
