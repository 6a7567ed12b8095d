package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/store"
)

func newShowCmd(flags *rootFlags) *cobra.Command {
	var project, format string
	cmd := &cobra.Command{
		Use:   "show <fqn>",
		Short: "Show a stored declaration with its uses and used-by",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("invalid format %q: must be json or text", format)
			}
			s, err := openStore(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := loadAnywhere(s, project, args[0])
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd, "", d)
			}
			formatDeclarationText(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (default: search every project)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: json|text")
	return cmd
}

// loadAnywhere loads fqn from project, or from the first stored project
// that declares it.
func loadAnywhere(s *store.Store, project, fqn string) (model.Declaration, error) {
	if project != "" {
		return s.LoadDeclaration(project, fqn)
	}
	projects, err := s.ListProjects()
	if err != nil {
		return model.Declaration{}, err
	}
	for _, p := range projects {
		d, err := s.LoadDeclaration(p.Name, fqn)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return model.Declaration{}, err
		}
	}
	return model.Declaration{}, fmt.Errorf("declaration %q: %w", fqn, store.ErrNotFound)
}

func formatDeclarationText(w io.Writer, d model.Declaration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "FQN\t%s\n", d.FQN)
	fmt.Fprintf(tw, "KIND\t%s\n", d.Kind)
	fmt.Fprintf(tw, "VISIBILITY\t%s\n", d.Visibility)
	fmt.Fprintf(tw, "LOCATION\t%s:%d-%d\n", d.Path, d.StartLine, d.EndLine)
	if len(d.Annotations) > 0 {
		fmt.Fprintf(tw, "ANNOTATIONS\t%s\n", strings.Join(d.Annotations, " "))
	}
	if d.Extends != "" {
		fmt.Fprintf(tw, "EXTENDS\t%s\n", d.Extends)
	}
	if len(d.Implements) > 0 {
		fmt.Fprintf(tw, "IMPLEMENTS\t%s\n", strings.Join(d.Implements, ", "))
	}
	for _, f := range d.Functions {
		fmt.Fprintf(tw, "FUNCTION\t%s: %s\n", f.Signature, f.ReturnType)
	}
	fmt.Fprintf(tw, "USES\t%s\n", listOrDash(d.Uses))
	fmt.Fprintf(tw, "USED BY\t%s\n", listOrDash(d.UsedBy))
	tw.Flush()
}

func listOrDash(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}
