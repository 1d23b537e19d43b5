package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hiketracker/hiketracker/tracker/internal/journal"
	"github.com/hiketracker/hiketracker/tracker/internal/status"
)

func newStatusClient(cmd *cli.Command) (*status.Client, error) {
	var opts []status.Option
	if key := cmd.String("api-key"); key != "" {
		opts = append(opts, status.WithAPIKey(cmd.String("api-key-header"), key))
	}
	return status.New(cmd.String("addr"), opts...)
}

// Status prints the state of a running tracker. Metrics are optional: a
// failed scrape still prints the API status.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	c, err := newStatusClient(cmd)
	if err != nil {
		return err
	}
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(st)
	}

	rep, err := c.Metrics(ctx)
	if err != nil {
		fmt.Fprintf(r.logOut, "warning: %v\n", err)
		rep = nil
	}
	status.Render(r.output, st, rep)
	return nil
}

// Photos lists the photos stored by a running tracker, newest first.
func (r *Runner) Photos(ctx context.Context, cmd *cli.Command) error {
	c, err := newStatusClient(cmd)
	if err != nil {
		return err
	}
	resp, err := c.Photos(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(resp.Photos)
	}
	if resp.Count == 0 {
		r.writeln("no photos yet")
		return nil
	}
	for _, p := range resp.Photos {
		r.writeln("%4d  %s  %s", p.InsertedOrder, p.FoundAt.Local().Format(time.DateTime), p.URL)
	}
	return nil
}

// History lists journaled runs, or the photos of --run.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("db")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal %s: %w", path, err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	runID := cmd.String("run")
	if runID == "" {
		runs, err := j.Runs(ctx)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(runs)
		}
		if len(runs) == 0 {
			r.writeln("no runs recorded")
			return nil
		}
		for _, run := range runs {
			stopped := "running"
			if run.StoppedAt != nil {
				stopped = run.StoppedAt.Local().Format(time.DateTime)
			}
			r.writeln("%s  %s  %-19s  %d photos",
				run.ID, run.StartedAt.Local().Format(time.DateTime), stopped, run.Photos)
		}
		return nil
	}

	entries, err := j.Photos(ctx, runID, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return r.writeJSON(entries)
	}
	if len(entries) == 0 {
		r.writeln("no photos recorded for run %s", runID)
		return nil
	}
	for _, e := range entries {
		r.writeln("%4d  %s  %9.5f,%10.5f  %s",
			e.InsertedOrder, e.FoundAt.Local().Format(time.DateTime), e.Latitude, e.Longitude, e.URL)
	}
	return nil
}
