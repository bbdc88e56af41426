package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/estatetools/propstack-mcp/internal/config"
	"github.com/estatetools/propstack-mcp/internal/crm"
	mcpserver "github.com/estatetools/propstack-mcp/internal/mcp"
	"github.com/estatetools/propstack-mcp/pkg/client"
	"github.com/estatetools/propstack-mcp/pkg/logging"
	"github.com/estatetools/propstack-mcp/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout. The agent host connects via its
MCP configuration and calls CRM tools directly. Configuration comes from
PROPSTACK_* environment variables; PROPSTACK_API_KEY is required.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	apiClient, err := client.New(cfg.ClientConfig())
	if err != nil {
		return err
	}

	service := crm.NewService(apiClient, crm.Options{
		Walk:     cfg.WalkConfig(),
		Pipeline: cfg.PipelineConfig(),
	})

	srv := mcpserver.NewServer(service, version)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "OK")
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics listener")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("version", version).
		Msg("starting propstack MCP server over stdio")

	return srv.Run(cmd.Context(), &sdkmcp.StdioTransport{})
}
