package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.yaml",
	}
}

// clientFlags are shared by the commands talking to a running tracker.
func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Base URL of the running tracker",
			Value: "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for a tracker running with auth mode apikey",
			Sources: cli.EnvVars("HIKETRACKER_API_KEY"),
		},
		&cli.StringFlag{
			Name:  "api-key-header",
			Usage: "Header carrying the API key",
			Value: "X-API-Key",
		},
	}
}

// runCommand starts the daemon
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the tracker until interrupted",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Run,
	}
}

// statusCommand prints the state of a running tracker
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show engine, fetch and alert state of a running tracker",
		Flags: append(clientFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		),
		Action: r.Status,
	}
}

// photosCommand lists the photos stored in the current run
func photosCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "photos",
		Usage: "List photos found in the current run, newest first",
		Flags: append(clientFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of photos to list (0 lists all)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		),
		Action: r.Photos,
	}
}

// historyCommand reads the journal database directly
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List journaled runs, or the photos of one run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the journal database",
				Value: "hiketracker.db",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Run ID whose photos to list",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of photos to list (0 lists all)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
