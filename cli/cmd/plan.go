package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stainfetch/cli/render"
	"github.com/pithecene-io/stainfetch/tasks"
	"github.com/pithecene-io/stainfetch/types"
)

// PlanRow is one planned task in plan output.
type PlanRow struct {
	Plate    string `json:"plate"`
	Position string `json:"position"`
	Sample   string `json:"sample"`
	Channel  string `json:"channel"`
	Source   string `json:"source"`
	Dest     string `json:"dest"`
}

// PlanCommand returns the plan command: it expands the sample catalog
// into channel tasks and prints them without touching the network or
// the output directory.
func PlanCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "outdir",
			Aliases: []string{"o"},
			Usage:   "Directory the fetch command would write to",
			Value:   ".",
		},
	}
	flags = append(flags, inputFlags()...)
	flags = append(flags, FormatFlag)

	return &cli.Command{
		Name:   "plan",
		Usage:  "Show the channel tasks a fetch would run, without fetching",
		Flags:  flags,
		Action: planAction,
	}
}

func planAction(c *cli.Context) error {
	s, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	records, err := loadRecords(c.Context, s)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	taskSet, err := tasks.Build(records, s.outdir, s.imageSuffix)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	return r.Render(planRows(taskSet))
}

// planRows flattens tasks for rendering.
func planRows(taskSet []types.ChannelTask) []PlanRow {
	rows := make([]PlanRow, 0, len(taskSet))
	for _, task := range taskSet {
		source := task.SourceURL
		if source == "" {
			source = task.SourcePath
		}
		rows = append(rows, PlanRow{
			Plate:    task.Key.PlateID,
			Position: task.Key.Position,
			Sample:   task.Key.Sample,
			Channel:  string(task.Channel),
			Source:   source,
			Dest:     task.DestPath,
		})
	}
	return rows
}
