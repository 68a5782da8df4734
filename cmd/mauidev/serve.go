package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	mauimcp "github.com/adjust/mauidev/internal/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	var (
		instructions bool
		httpAddr     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Serve the build operations as MCP tools over stdio, or over streamable HTTP
with --http. Child output is echoed to stderr so stdout carries only the
protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), mauimcp.Instructions)
				return nil
			}
			e, err := a.open(os.Stderr)
			if err != nil {
				return err
			}
			server := mauimcp.NewServer(e)
			if httpAddr != "" {
				return serveHTTP(cmd.Context(), a, server, httpAddr)
			}
			return server.Run(cmd.Context(), &mcpsdk.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	return cmd
}

func serveHTTP(ctx context.Context, a *app, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	a.log.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "http server")
	}
	return nil
}
