package report

import (
	"context"
	"strconv"

	"github.com/tyemirov/actions-timing/internal/actions"
)

const (
	csvHeaderRepositoryName         = "repository_name"
	csvHeaderWorkflowID             = "workflow_id"
	csvHeaderWorkflowName           = "workflow_name"
	csvHeaderWorkflowRunID          = "workflow_run_id"
	csvHeaderWorkflowRunCreatedAt   = "workflow_run_created_at"
	csvHeaderWorkflowRunStatus      = "workflow_run_status"
	csvHeaderBillableUbuntuTotalMS  = "billable_ubuntu_total_ms"
	csvHeaderBillableMacOSTotalMS   = "billable_macos_total_ms"
	csvHeaderBillableWindowsTotalMS = "billable_windows_total_ms"
	csvHeaderRunDurationMS          = "run_duration_ms"
)

// Header lists the report columns in output order.
func Header() []string {
	return []string{
		csvHeaderRepositoryName,
		csvHeaderWorkflowID,
		csvHeaderWorkflowName,
		csvHeaderWorkflowRunID,
		csvHeaderWorkflowRunCreatedAt,
		csvHeaderWorkflowRunStatus,
		csvHeaderBillableUbuntuTotalMS,
		csvHeaderBillableMacOSTotalMS,
		csvHeaderBillableWindowsTotalMS,
		csvHeaderRunDurationMS,
	}
}

// Row is one workflow run joined with its timing. Durations omitted by the provider are zero.
type Row struct {
	RepositoryName         string
	WorkflowID             int64
	WorkflowName           string
	WorkflowRunID          int64
	WorkflowRunCreatedAt   string
	WorkflowRunStatus      string
	BillableUbuntuTotalMS  int64
	BillableMacOSTotalMS   int64
	BillableWindowsTotalMS int64
	RunDurationMS          int64
}

// CSVRecord returns the row formatted for CSV encoding.
func (row Row) CSVRecord() []string {
	return []string{
		row.RepositoryName,
		strconv.FormatInt(row.WorkflowID, 10),
		row.WorkflowName,
		strconv.FormatInt(row.WorkflowRunID, 10),
		row.WorkflowRunCreatedAt,
		row.WorkflowRunStatus,
		strconv.FormatInt(row.BillableUbuntuTotalMS, 10),
		strconv.FormatInt(row.BillableMacOSTotalMS, 10),
		strconv.FormatInt(row.BillableWindowsTotalMS, 10),
		strconv.FormatInt(row.RunDurationMS, 10),
	}
}

// Summary holds the report rows of one workflow.
type Summary struct {
	Workflow actions.Workflow
	Rows     []Row
}

// Empty reports whether the summary has no rows and therefore produces no report.
func (summary Summary) Empty() bool {
	return len(summary.Rows) == 0
}

// Sink persists workflow summaries. Empty summaries are skipped without error.
type Sink interface {
	Write(executionContext context.Context, summary Summary) error
}
