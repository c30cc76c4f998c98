package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/gwillem/replaybot/pkg/robot"
	"github.com/gwillem/replaybot/pkg/trace"
)

type TracesCommand struct {
	Name string `long:"name" description:"Only list recordings with this name"`
}

func (c *TracesCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Trace.Backend != robot.BackendSQLite {
		return fmt.Errorf("traces needs the %s backend, %s is configured", robot.BackendSQLite, cfg.Trace.Backend)
	}

	store, err := trace.OpenSQLite(cfg.Trace.Path, cfg.Trace.Name)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(context.Background())
	if err != nil {
		return err
	}

	t := styledTable("ID", "Name", "Frames", "Length", "Recorded")
	shown := 0
	for _, r := range recs {
		if c.Name != "" && r.Name != c.Name {
			continue
		}
		shown++
		t.Row(
			shortID(r.ID),
			r.Name,
			fmt.Sprintf("%d", r.Frames),
			(time.Duration(r.Frames) * cfg.Period()).String(),
			r.CreatedAt.Local().Format(time.DateTime),
		)
	}

	if shown == 0 {
		fmt.Println(color.YellowString("No recordings in %s", cfg.Trace.Path))
		return nil
	}
	fmt.Println(t.Render())
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
