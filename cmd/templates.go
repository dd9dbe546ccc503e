package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/teleassist/robotnik/internal/playbook"
	"github.com/teleassist/robotnik/internal/store"
)

type TemplatesCmd struct {
	List      TemplatesListCmd      `cmd:"" default:"1" help:"List reply templates."`
	Add       TemplatesAddCmd       `cmd:"" help:"Add a reply template."`
	Delete    TemplatesDeleteCmd    `cmd:"" help:"Delete a template."`
	Render    TemplatesRenderCmd    `cmd:"" help:"Render a template against context facts."`
	Recommend TemplatesRecommendCmd `cmd:"" help:"Recommend templates for ticket features."`
}

type TemplatesListCmd struct{}

func (c *TemplatesListCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		templates, err := st.Templates(ctx)
		if err != nil {
			return err
		}
		for _, tpl := range templates {
			line := fmt.Sprintf("%s  %s", color.CyanString(tpl.ID), tpl.Name)
			if len(tpl.Placeholders) > 0 {
				line += "  " + strings.Join(tpl.Placeholders, " ")
			}
			fmt.Println(line)
		}
		return nil
	})
}

type TemplatesAddCmd struct {
	Name     string   `arg:"" help:"Template name."`
	Body     string   `arg:"" help:"Template body with {UPPER_SNAKE} placeholders."`
	Category string   `help:"Optional category."`
	Tags     []string `help:"Tags for the template."`
}

func (c *TemplatesAddCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		tpl, err := st.AddTemplate(ctx, store.Template{
			Name: c.Name, Body: c.Body, Category: c.Category, Tags: c.Tags,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (placeholders: %s)\n", tpl.ID, strings.Join(tpl.Placeholders, " "))
		return nil
	})
}

type TemplatesDeleteCmd struct {
	ID string `arg:"" help:"Template id."`
}

func (c *TemplatesDeleteCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		return st.DeleteTemplate(ctx, c.ID)
	})
}

type TemplatesRenderCmd struct {
	ID  string            `arg:"" help:"Template id."`
	Set map[string]string `help:"Context facts as key=value pairs (clientCode, ticketId, lineNumber, clientName, atcPlan)."`
}

func (c *TemplatesRenderCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		templates, err := st.Templates(ctx)
		if err != nil {
			return err
		}
		for _, tpl := range templates {
			if tpl.ID != c.ID {
				continue
			}
			runCtx := playbook.NewContext()
			for k, v := range c.Set {
				runCtx[k] = v
			}
			fmt.Println(store.ResolvePlaceholders(tpl.Body, runCtx))
			return nil
		}
		return store.ErrEntryNotFound
	})
}

type TemplatesRecommendCmd struct {
	Queue      string   `help:"Ticket queue."`
	ClientCode string   `help:"Client code."`
	Keywords   []string `help:"Ticket keywords."`
	Limit      int      `help:"How many templates to suggest." default:"3"`
}

func (c *TemplatesRecommendCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, st *store.Store) error {
		got, err := st.RecommendTemplates(ctx, store.TicketMeta{
			Queue: c.Queue, ClientCode: c.ClientCode, Keywords: c.Keywords,
		}, c.Limit)
		if err != nil {
			return err
		}
		if len(got) == 0 {
			fmt.Println("No usage history to recommend from yet.")
			return nil
		}
		for _, tpl := range got {
			fmt.Printf("%s  %s\n", color.CyanString(tpl.ID), tpl.Name)
		}
		return nil
	})
}
