package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/DeusData/declgraph/internal/analyzer"
	"github.com/DeusData/declgraph/internal/tools"
	"github.com/DeusData/declgraph/internal/watcher"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored graph as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			tools.Version = version
			srv := tools.NewServer(s, analyzer.NewMetrics(prometheus.DefaultRegisterer))

			ctx := cmd.Context()
			if watch {
				w := watcher.New(s, srv.Reanalyze)
				go w.Run(ctx)
			}
			return srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-analyze stored projects when their sources change")
	return cmd
}
