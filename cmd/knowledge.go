package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/teleassist/robotnik/internal/store"
)

type KnowledgeCmd struct {
	List   KnowledgeListCmd   `cmd:"" default:"1" help:"List knowledge entries."`
	Add    KnowledgeAddCmd    `cmd:"" help:"Add a knowledge entry."`
	Search KnowledgeSearchCmd `cmd:"" help:"Search entries by terms."`
	Delete KnowledgeDeleteCmd `cmd:"" help:"Delete an entry."`
	Export KnowledgeExportCmd `cmd:"" help:"Export entries as JSON."`
	Import KnowledgeImportCmd `cmd:"" help:"Import entries from a JSON export."`
}

type KnowledgeListCmd struct{}

func (c *KnowledgeListCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		entries, err := st.KnowledgeEntries(ctx)
		if err != nil {
			return err
		}
		printKnowledge(entries)
		return nil
	})
}

type KnowledgeAddCmd struct {
	Title string   `arg:"" help:"Entry title."`
	Text  string   `arg:"" help:"Entry text."`
	Tags  []string `help:"Tags for the entry."`
}

func (c *KnowledgeAddCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		entry, err := st.AddKnowledge(ctx, store.KnowledgeEntry{
			Title: c.Title, Text: c.Text, Tags: c.Tags,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", entry.ID)
		return nil
	})
}

type KnowledgeSearchCmd struct {
	Query []string `arg:"" help:"Search terms."`
}

func (c *KnowledgeSearchCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		entries, err := st.KnowledgeEntries(ctx)
		if err != nil {
			return err
		}
		printKnowledge(store.SearchKnowledge(entries, strings.Join(c.Query, " ")))
		return nil
	})
}

type KnowledgeDeleteCmd struct {
	ID string `arg:"" help:"Entry id."`
}

func (c *KnowledgeDeleteCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		return st.DeleteKnowledge(ctx, c.ID)
	})
}

type KnowledgeExportCmd struct {
	Out string `help:"Output file; stdout when empty."`
}

func (c *KnowledgeExportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := st.ExportKnowledge(ctx)
		if err != nil {
			return err
		}
		return writeOut(c.Out, data)
	})
}

type KnowledgeImportCmd struct {
	File string `arg:"" help:"JSON export file."`
}

func (c *KnowledgeImportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return err
		}
		applied, err := st.ImportKnowledge(ctx, data)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d entries\n", applied)
		return nil
	})
}

func printKnowledge(entries []store.KnowledgeEntry) {
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s", color.CyanString(e.ID), e.Title)
		if len(e.Tags) > 0 {
			line += "  [" + strings.Join(e.Tags, ", ") + "]"
		}
		fmt.Println(line)
		if e.Text != "" {
			fmt.Println("    " + e.Text)
		}
	}
}
