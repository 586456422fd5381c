package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/correlate-cli/internal/metrics"
	"github.com/KaramelBytes/correlate-cli/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	srvAddr       string
	srvOffline    bool
	srvProvider   string
	srvModel      string
	srvTimeoutSec int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis over HTTP",
	Long: `Serve exposes POST /api/analyze (multipart: file1, file2, timeField1, valueField1,
timeField2, valueField2, optional method, name1, name2), POST /api/columns, GET /health and GET /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := srvAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		m := metrics.New()
		a, err := newAnalyzer(cfg, runtimeOptions{
			ProviderFlag: srvProvider,
			ModelFlag:    srvModel,
			Offline:      srvOffline,
		}, m)
		if err != nil {
			return err
		}
		s := server.New(server.Options{
			Analyzer:    a,
			Metrics:     m,
			Logger:      logger,
			MaxUploadMB: cfg.MaxUploadMB,
			Timeout:     time.Duration(srvTimeoutSec) * time.Second,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on %s (POST /api/analyze)\n", addr)
		return s.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config listen_addr)")
	serveCmd.Flags().BoolVar(&srvOffline, "offline", false, "do not call a model; use Pearson and a templated summary")
	serveCmd.Flags().StringVar(&srvProvider, "provider", "", "model provider: openrouter | ollama | offline")
	serveCmd.Flags().StringVar(&srvModel, "model", "", "model name (overrides config)")
	serveCmd.Flags().IntVar(&srvTimeoutSec, "timeout-sec", 180, "per-request analysis timeout in seconds (0 = none)")
}
