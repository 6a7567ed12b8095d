package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/DeusData/declgraph/internal/analyzer"
	"github.com/DeusData/declgraph/internal/config"
	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/pipeline"
	"github.com/DeusData/declgraph/internal/store"
)

// report is the JSON document written by analyze.
type report struct {
	Project      string                 `json:"project"`
	Files        []model.AnalysisResult `json:"files"`
	Declarations []model.Declaration    `json:"declarations"`
	Conflicts    []model.Conflict       `json:"conflicts"`
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var out, metricsFile string
	cmd := &cobra.Command{
		Use:   "analyze <dir>",
		Short: "Analyze a Kotlin project and print its declaration graph",
		Long:  "Discovers every Kotlin file under dir, extracts declarations, builds the usage graph and writes it as JSON. With --db (or store.path in the config) the graph is also stored for show and serve.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if info, err := os.Stat(root); err != nil || !info.IsDir() {
				return fmt.Errorf("not a directory: %s", args[0])
			}

			var cfg *config.Config
			if flags.config != "" {
				cfg, err = config.LoadFile(flags.config)
			} else {
				cfg, err = config.Load(root)
			}
			if err != nil {
				return err
			}

			var s *store.Store
			dbPath := flags.db
			if dbPath == "" {
				dbPath = cfg.EffectiveStorePath(root, "")
			}
			if dbPath != "" {
				if s, err = store.Open(dbPath); err != nil {
					return fmt.Errorf("store open %s: %w", dbPath, err)
				}
				defer s.Close()
			}

			reg := prometheus.NewRegistry()
			p := pipeline.New(cmd.Context(), s, root, pipeline.Options{
				Config:  cfg,
				Metrics: analyzer.NewMetrics(reg),
			})
			res, err := p.Run()
			if err != nil {
				return err
			}

			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}

			snap := res.Graph.Snapshot()
			return writeJSON(cmd, out, report{
				Project:      p.ProjectName,
				Files:        res.Files,
				Declarations: snap.Declarations,
				Conflicts:    snap.Conflicts,
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write JSON to this file instead of stdout")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	return cmd
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "" {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
