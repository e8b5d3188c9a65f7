package jobstore

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// JobsCLI backs the `cred-convert jobs` subcommand.
type JobsCLI struct {
	Store  *Store
	Output io.Writer
}

// NewJobsCLI creates a JobsCLI writing to output.
func NewJobsCLI(store *Store, output io.Writer) *JobsCLI {
	return &JobsCLI{Store: store, Output: output}
}

// Run dispatches one subcommand.
func (c *JobsCLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return fmt.Errorf("missing jobs command")
	}
	switch args[0] {
	case "list":
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid limit %q", args[1])
			}
			limit = n
		}
		return c.List(ctx, limit)
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: cred-convert jobs show <job-id>")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", args[1], err)
		}
		return c.Show(ctx, id)
	case "status":
		return c.Status()
	case "migrate":
		if len(args) < 2 {
			return fmt.Errorf("usage: cred-convert jobs migrate <version>")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := c.Store.MigrateTo(uint(v)); err != nil {
			return err
		}
		return c.Status()
	case "help":
		c.PrintUsage()
		return nil
	}
	c.PrintUsage()
	return fmt.Errorf("unknown jobs command %q", args[0])
}

func formatDuration(j Job) string {
	if j.FinishedAt.IsZero() {
		return "-"
	}
	return j.FinishedAt.Sub(j.StartedAt).Round(time.Millisecond).String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// List prints the most recent jobs, newest first.
func (c *JobsCLI) List(ctx context.Context, limit int) error {
	jobs, err := c.Store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(c.Output, "No jobs recorded")
		return nil
	}
	fmt.Fprintf(c.Output, "%-36s  %-9s  %-20s  %8s  %6s  %8s  %8s\n",
		"JOB", "STATUS", "STARTED", "DURATION", "FRAMES", "BEAM X", "BEAM Y")
	for _, j := range jobs {
		fmt.Fprintf(c.Output, "%-36s  %-9s  %-20s  %8s  %6d  %8s  %8s\n",
			j.ID, j.Status, j.StartedAt.UTC().Format("2006-01-02 15:04:05"), formatDuration(j),
			j.Frames, formatFloat(j.Beam.Mean.X), formatFloat(j.Beam.Mean.Y))
	}
	return nil
}

// Show prints one job and its artifacts.
func (c *JobsCLI) Show(ctx context.Context, id uuid.UUID) error {
	j, err := c.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	artifacts, err := c.Store.Artifacts(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Output, "Job:       %s\n", j.ID)
	fmt.Fprintf(c.Output, "Status:    %s\n", j.Status)
	fmt.Fprintf(c.Output, "Started:   %s\n", j.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(c.Output, "Duration:  %s\n", formatDuration(j))
	fmt.Fprintf(c.Output, "Frames:    %d (%d..%d, %d missing)\n", j.Frames, j.FirstIndex, j.LastIndex, j.Missing)
	fmt.Fprintf(c.Output, "Beam:      x=%s±%s y=%s±%s",
		formatFloat(j.Beam.Mean.X), formatFloat(j.Beam.Std.X), formatFloat(j.Beam.Mean.Y), formatFloat(j.Beam.Std.Y))
	if j.Beam.Fallback {
		fmt.Fprint(c.Output, " (configured)")
	}
	fmt.Fprintln(c.Output)
	if j.Error != "" {
		fmt.Fprintf(c.Output, "Error:     %s\n", j.Error)
	}
	fmt.Fprintf(c.Output, "Artifacts: %d\n", len(artifacts))
	for _, p := range artifacts {
		fmt.Fprintf(c.Output, "  %s\n", p)
	}
	return nil
}

// Status prints the schema version of the ledger.
func (c *JobsCLI) Status() error {
	v, dirty, err := c.Store.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(c.Output, "Schema version: %d (dirty: %v)\n", v, dirty)
	return nil
}

// PrintUsage prints the jobs subcommand usage.
func (c *JobsCLI) PrintUsage() {
	fmt.Fprintln(c.Output, "Usage: cred-convert jobs <command> [options]")
	fmt.Fprintln(c.Output, "")
	fmt.Fprintln(c.Output, "Commands:")
	fmt.Fprintln(c.Output, "  list [n]            Show the n most recent conversion jobs (default 20)")
	fmt.Fprintln(c.Output, "  show <job-id>       Show one job and the artifacts it wrote")
	fmt.Fprintln(c.Output, "  status              Show the ledger schema version")
	fmt.Fprintln(c.Output, "  migrate <version>   Migrate the ledger schema up or down to version")
	fmt.Fprintln(c.Output, "")
}
