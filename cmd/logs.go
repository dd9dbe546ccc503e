package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/teleassist/robotnik/internal/store"
)

type LogsCmd struct {
	Show   LogsShowCmd   `cmd:"" default:"1" help:"Show recent run log entries."`
	Clear  LogsClearCmd  `cmd:"" help:"Delete all run log entries."`
	Export LogsExportCmd `cmd:"" help:"Export the run log as JSON."`
}

type LogsShowCmd struct {
	Limit int `help:"How many entries to show." default:"50"`
}

func (c *LogsShowCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		entries, err := st.Logs(ctx, c.Limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			mark := color.GreenString("ok")
			if !e.OK {
				mark = color.RedString("fail")
			}
			line := fmt.Sprintf("%s  [%s] %s: %s", e.TS.Format("2006-01-02 15:04:05"), mark, e.System, e.Action)
			if e.Error != "" {
				line += " (" + e.Error + ")"
			}
			fmt.Println(line)
		}
		return nil
	})
}

type LogsClearCmd struct{}

func (c *LogsClearCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		if err := st.ClearLogs(ctx); err != nil {
			return err
		}
		fmt.Println("Run log cleared")
		return nil
	})
}

type LogsExportCmd struct {
	Out string `help:"Output file; stdout when empty."`
}

func (c *LogsExportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := st.ExportLogs(ctx)
		if err != nil {
			return err
		}
		return writeOut(c.Out, data)
	})
}
