package report

import (
	"github.com/tyemirov/actions-timing/internal/actions"
)

// Assemble joins runs with their timings by run identifier, keeping the order of runs.
// Runs without a timing are left out.
func Assemble(repository actions.Repository, workflow actions.Workflow, runs []actions.WorkflowRun, timings map[int64]actions.Timing) Summary {
	rows := make([]Row, 0, len(runs))
	for _, run := range runs {
		timing, found := timings[run.ID]
		if !found {
			continue
		}
		rows = append(rows, Row{
			RepositoryName:         repository.Name,
			WorkflowID:             workflow.ID,
			WorkflowName:           workflow.Name,
			WorkflowRunID:          run.ID,
			WorkflowRunCreatedAt:   run.CreatedAt,
			WorkflowRunStatus:      run.Status,
			BillableUbuntuTotalMS:  timing.BillableTotal(actions.RunnerOperatingSystemUbuntu).OrZero(),
			BillableMacOSTotalMS:   timing.BillableTotal(actions.RunnerOperatingSystemMacOS).OrZero(),
			BillableWindowsTotalMS: timing.BillableTotal(actions.RunnerOperatingSystemWindows).OrZero(),
			RunDurationMS:          timing.RunDuration.OrZero(),
		})
	}
	return Summary{Workflow: workflow, Rows: rows}
}
