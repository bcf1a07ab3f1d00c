package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"lattice"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputComponents prints components as JSON or aligned columns.
func outputComponents(format string, comps []*lattice.Component) error {
	if format == "json" {
		return outputJSON(comps)
	}
	formatComponentsText(os.Stdout, comps)
	return nil
}

func formatComponentsText(w io.Writer, comps []*lattice.Component) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tLANGUAGE\tFILE\tLINE")
	for _, c := range comps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			c.Name, c.Type, c.Language, c.FilePath, c.Location.StartLine)
	}
	tw.Flush()
}

// outputReports prints per-file indexing results.
func outputReports(format string, reports []lattice.FileReport) error {
	if format == "json" {
		return outputJSON(reports)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLANGUAGE\tROUTE\tCOMPONENTS\tEDGES\tSTATUS")
	for _, r := range reports {
		status := "ok"
		switch {
		case r.Err != "":
			status = "error: " + r.Err
		case r.Skipped:
			status = "skipped"
		case len(r.Warnings) > 0:
			status = fmt.Sprintf("%d warning(s)", len(r.Warnings))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.Path, r.Language, r.Route, r.Components, r.Relationships, status)
	}
	return tw.Flush()
}

// outputStats prints a resolution summary.
func outputStats(format string, stats lattice.ResolveStats) error {
	if format == "json" {
		return outputJSON(stats)
	}
	fmt.Printf("Examined: %d\n", stats.Examined)
	fmt.Printf("Resolved targets: %d\n", stats.ResolvedTargets)
	fmt.Printf("Resolved sources: %d\n", stats.ResolvedSources)
	fmt.Printf("Left unresolved: %d\n", stats.LeftUnresolved)
	return nil
}
