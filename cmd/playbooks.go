package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/teleassist/robotnik/internal/playbook"
	"github.com/teleassist/robotnik/internal/store"
)

type PlaybooksCmd struct {
	List   PlaybooksListCmd   `cmd:"" default:"1" help:"List built-in and stored playbooks."`
	Save   PlaybooksSaveCmd   `cmd:"" help:"Store a playbook from a YAML file."`
	Delete PlaybooksDeleteCmd `cmd:"" help:"Delete a stored playbook."`
	Export PlaybooksExportCmd `cmd:"" help:"Export stored playbooks as JSON."`
	Import PlaybooksImportCmd `cmd:"" help:"Import playbooks from a JSON export."`
}

type PlaybooksListCmd struct{}

func (c *PlaybooksListCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		all, err := st.Playbooks(ctx)
		if err != nil {
			return err
		}
		for _, pb := range all {
			kind := "user"
			if pb.BuiltIn {
				kind = "built-in"
			}
			fmt.Printf("%s  %s (%s, %d steps)\n",
				color.CyanString(pb.ID), pb.Name, kind, len(pb.Steps))
		}
		return nil
	})
}

type PlaybooksSaveCmd struct {
	File string `arg:"" help:"Playbook YAML file."`
}

func (c *PlaybooksSaveCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		pb, err := playbook.LoadFromFile(c.File)
		if err != nil {
			return err
		}
		saved, err := st.SavePlaybook(ctx, *pb)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %q as %s\n", saved.Name, saved.ID)
		return nil
	})
}

type PlaybooksDeleteCmd struct {
	ID string `arg:"" help:"Playbook id."`
}

func (c *PlaybooksDeleteCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		if err := st.DeletePlaybook(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", c.ID)
		return nil
	})
}

type PlaybooksExportCmd struct {
	Out string `help:"Output file; stdout when empty."`
}

func (c *PlaybooksExportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := st.ExportPlaybooks(ctx)
		if err != nil {
			return err
		}
		return writeOut(c.Out, data)
	})
}

type PlaybooksImportCmd struct {
	File string `arg:"" help:"JSON export file."`
}

func (c *PlaybooksImportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return err
		}
		applied, err := st.ImportPlaybooks(ctx, data)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d playbooks\n", applied)
		return nil
	})
}

func withStore(g *Globals, fn func(context.Context, *store.Store) error) error {
	ctx := context.Background()
	st, err := store.Open(ctx, g.DB)
	if err != nil {
		return fmt.Errorf("opening the store: %w", err)
	}
	defer st.Close()
	return fn(ctx, st)
}

func writeOut(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
