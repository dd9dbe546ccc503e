package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/teleassist/robotnik/internal/store"
)

type TrainingCmd struct {
	List   TrainingListCmd   `cmd:"" default:"1" help:"List training examples."`
	Add    TrainingAddCmd    `cmd:"" help:"Record how a ticket was handled."`
	Delete TrainingDeleteCmd `cmd:"" help:"Delete a training example."`
	Export TrainingExportCmd `cmd:"" help:"Export examples as JSON."`
	Import TrainingImportCmd `cmd:"" help:"Import examples from a JSON export."`
}

type TrainingListCmd struct{}

func (c *TrainingListCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		examples, err := st.TrainingExamples(ctx)
		if err != nil {
			return err
		}
		for _, ex := range examples {
			mark := color.GreenString(ex.Result)
			if ex.Result != store.TrainingResultOK {
				mark = color.RedString(ex.Result)
			}
			fmt.Printf("%s  %s  %s\n", color.CyanString(ex.ID), ex.ChosenCase, mark)
			if ex.Corrections != "" {
				fmt.Println("    " + ex.Corrections)
			}
		}
		return nil
	})
}

type TrainingAddCmd struct {
	Case        string            `arg:"" help:"The case that was chosen for the ticket."`
	TicketText  string            `help:"Ticket text the decision was based on."`
	Metadata    map[string]string `help:"Ticket features as key=value pairs."`
	Params      map[string]string `help:"Parameters used, as key=value pairs."`
	Result      string            `help:"Outcome of the handling." enum:"OK,NOT_OK" default:"OK"`
	Corrections string            `help:"What should have been done differently."`
}

func (c *TrainingAddCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		ex, err := st.AddTraining(ctx, store.TrainingExample{
			TicketText:  c.TicketText,
			Metadata:    c.Metadata,
			ChosenCase:  c.Case,
			Params:      c.Params,
			Result:      c.Result,
			Corrections: c.Corrections,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", ex.ID)
		return nil
	})
}

type TrainingDeleteCmd struct {
	ID string `arg:"" help:"Example id."`
}

func (c *TrainingDeleteCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		return st.DeleteTraining(ctx, c.ID)
	})
}

type TrainingExportCmd struct {
	Out string `help:"Output file; stdout when empty."`
}

func (c *TrainingExportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := st.ExportTraining(ctx)
		if err != nil {
			return err
		}
		return writeOut(c.Out, data)
	})
}

type TrainingImportCmd struct {
	File string `arg:"" help:"JSON export file."`
}

func (c *TrainingImportCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return err
		}
		applied, err := st.ImportTraining(ctx, data)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d examples\n", applied)
		return nil
	})
}
