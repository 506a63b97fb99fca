package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/stereoscan/pipeline"
	"github.com/olekukonko/tablewriter"
)

func displayRunStats(out *pipeline.Output) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Time", "% of run"})
	for _, stat := range out.Stats.Stages {
		var percent float64
		if out.Stats.Total > 0 {
			percent = 100 * float64(stat.Time) / float64(out.Stats.Total)
		}
		table.Append([]string{
			stat.Stage.String(),
			stat.Time.String(),
			fmt.Sprintf("%02.1f %%", percent),
		})
	}
	table.SetFooter([]string{"TOTAL", out.Stats.Total.String(), ""})
	table.Render()

	logger.Noticef("run %s statistics (device: %s)\n%s", out.Stats.RunID, out.Stats.Device, buf.String())
	logger.Noticef("disparity %s", out.Summary)
	if out.Quality != nil {
		logger.Noticef("%s", out.Quality)
	}
}
