package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/teleassist/robotnik/cmd"
)

var cli struct {
	Globals cmd.Globals `embed:""`

	Run       cmd.RunCmd       `cmd:"" help:"Execute a playbook step by step."`
	Numbers   cmd.NumbersCmd   `cmd:"" help:"Search the marketplace for free numbers."`
	Insert    cmd.InsertCmd    `cmd:"" help:"Insert the last collected numbers into the open ticket."`
	Record    cmd.RecordCmd    `cmd:"" help:"Record a browser session and save it as a playbook."`
	Lint      cmd.LintCmd      `cmd:"" help:"Validate a playbook file."`
	Playbooks cmd.PlaybooksCmd `cmd:"" help:"Manage stored playbooks."`
	Logs      cmd.LogsCmd      `cmd:"" help:"Inspect the persistent run log."`
	Knowledge cmd.KnowledgeCmd `cmd:"" help:"Manage the knowledge base."`
	Templates cmd.TemplatesCmd `cmd:"" help:"Manage reply templates."`
	Training  cmd.TrainingCmd  `cmd:"" help:"Manage training examples."`
}

func main() {
	_ = godotenv.Load()

	ctx := kong.Parse(&cli,
		kong.Name("robotnik"),
		kong.Description("Operator sidekick for support workflows: replays playbooks across the ticket, accounting and telephony systems, and hunts free numbers on the marketplace."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
