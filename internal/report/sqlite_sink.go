package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteDriverNameConstant             = "sqlite"
	sqlitePathMissingMessageConstant     = "sqlite database path must be provided"
	sqliteOpenErrorTemplateConstant      = "unable to open sqlite database %s: %w"
	sqliteMigrationErrorTemplateConstant = "unable to prepare sqlite schema in %s: %w"
	sqliteWriteErrorTemplateConstant     = "unable to store timings of workflow %d: %w"
	sqliteReadErrorTemplateConstant      = "unable to read timings of workflow %d: %w"
	sqliteRowsWrittenMessageConstant     = "Stored workflow timing rows"
	sqliteDatabasePathLogFieldConstant   = "database_path"

	sqliteSchemaConstant = `
CREATE TABLE IF NOT EXISTS workflow_run_timings (
	workflow_run_id INTEGER PRIMARY KEY,
	repository_name TEXT NOT NULL,
	workflow_id INTEGER NOT NULL,
	workflow_name TEXT NOT NULL,
	workflow_run_created_at TEXT NOT NULL,
	workflow_run_status TEXT NOT NULL,
	billable_ubuntu_total_ms INTEGER NOT NULL,
	billable_macos_total_ms INTEGER NOT NULL,
	billable_windows_total_ms INTEGER NOT NULL,
	run_duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_run_timings_workflow ON workflow_run_timings(workflow_id);
`

	sqliteUpsertStatementConstant = `
INSERT INTO workflow_run_timings (
	workflow_run_id, repository_name, workflow_id, workflow_name, workflow_run_created_at, workflow_run_status,
	billable_ubuntu_total_ms, billable_macos_total_ms, billable_windows_total_ms, run_duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(workflow_run_id) DO UPDATE SET
	repository_name = excluded.repository_name,
	workflow_id = excluded.workflow_id,
	workflow_name = excluded.workflow_name,
	workflow_run_created_at = excluded.workflow_run_created_at,
	workflow_run_status = excluded.workflow_run_status,
	billable_ubuntu_total_ms = excluded.billable_ubuntu_total_ms,
	billable_macos_total_ms = excluded.billable_macos_total_ms,
	billable_windows_total_ms = excluded.billable_windows_total_ms,
	run_duration_ms = excluded.run_duration_ms
`

	sqliteSelectByWorkflowConstant = `
SELECT repository_name, workflow_id, workflow_name, workflow_run_id, workflow_run_created_at, workflow_run_status,
	billable_ubuntu_total_ms, billable_macos_total_ms, billable_windows_total_ms, run_duration_ms
FROM workflow_run_timings
WHERE workflow_id = ?
ORDER BY workflow_run_created_at DESC, workflow_run_id DESC
`
)

// SQLiteSink upserts report rows into a workflow_run_timings table keyed by run identifier.
type SQLiteSink struct {
	logger       *zap.Logger
	database     *sql.DB
	databasePath string
}

// OpenSQLiteSink opens or creates the database and prepares its schema.
func OpenSQLiteSink(logger *zap.Logger, databasePath string) (*SQLiteSink, error) {
	trimmedPath := strings.TrimSpace(databasePath)
	if len(trimmedPath) == 0 {
		return nil, errors.New(sqlitePathMissingMessageConstant)
	}

	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	database, openError := sql.Open(sqliteDriverNameConstant, trimmedPath)
	if openError != nil {
		return nil, fmt.Errorf(sqliteOpenErrorTemplateConstant, trimmedPath, openError)
	}

	if _, migrationError := database.Exec(sqliteSchemaConstant); migrationError != nil {
		_ = database.Close()
		return nil, fmt.Errorf(sqliteMigrationErrorTemplateConstant, trimmedPath, migrationError)
	}

	return &SQLiteSink{logger: resolvedLogger, database: database, databasePath: trimmedPath}, nil
}

// Close releases the database handle.
func (sink *SQLiteSink) Close() error {
	return sink.database.Close()
}

func (sink *SQLiteSink) Write(executionContext context.Context, summary Summary) error {
	if summary.Empty() {
		sink.logger.Debug(reportSkippedMessageConstant, zap.Int64(workflowIDLogFieldConstant, summary.Workflow.ID))
		return nil
	}

	transaction, beginError := sink.database.BeginTx(executionContext, nil)
	if beginError != nil {
		return fmt.Errorf(sqliteWriteErrorTemplateConstant, summary.Workflow.ID, beginError)
	}

	for _, row := range summary.Rows {
		_, execError := transaction.ExecContext(
			executionContext,
			sqliteUpsertStatementConstant,
			row.WorkflowRunID,
			row.RepositoryName,
			row.WorkflowID,
			row.WorkflowName,
			row.WorkflowRunCreatedAt,
			row.WorkflowRunStatus,
			row.BillableUbuntuTotalMS,
			row.BillableMacOSTotalMS,
			row.BillableWindowsTotalMS,
			row.RunDurationMS,
		)
		if execError != nil {
			_ = transaction.Rollback()
			return fmt.Errorf(sqliteWriteErrorTemplateConstant, summary.Workflow.ID, execError)
		}
	}

	if commitError := transaction.Commit(); commitError != nil {
		return fmt.Errorf(sqliteWriteErrorTemplateConstant, summary.Workflow.ID, commitError)
	}

	sink.logger.Info(
		sqliteRowsWrittenMessageConstant,
		zap.String(sqliteDatabasePathLogFieldConstant, sink.databasePath),
		zap.Int64(workflowIDLogFieldConstant, summary.Workflow.ID),
		zap.Int(rowCountLogFieldConstant, len(summary.Rows)),
	)
	return nil
}

// LoadRows returns the stored rows of a workflow, newest first.
func (sink *SQLiteSink) LoadRows(executionContext context.Context, workflowID int64) ([]Row, error) {
	queryRows, queryError := sink.database.QueryContext(executionContext, sqliteSelectByWorkflowConstant, workflowID)
	if queryError != nil {
		return nil, fmt.Errorf(sqliteReadErrorTemplateConstant, workflowID, queryError)
	}
	defer queryRows.Close()

	var rows []Row
	for queryRows.Next() {
		var row Row
		scanError := queryRows.Scan(
			&row.RepositoryName,
			&row.WorkflowID,
			&row.WorkflowName,
			&row.WorkflowRunID,
			&row.WorkflowRunCreatedAt,
			&row.WorkflowRunStatus,
			&row.BillableUbuntuTotalMS,
			&row.BillableMacOSTotalMS,
			&row.BillableWindowsTotalMS,
			&row.RunDurationMS,
		)
		if scanError != nil {
			return nil, fmt.Errorf(sqliteReadErrorTemplateConstant, workflowID, scanError)
		}
		rows = append(rows, row)
	}
	if iterationError := queryRows.Err(); iterationError != nil {
		return nil, fmt.Errorf(sqliteReadErrorTemplateConstant, workflowID, iterationError)
	}
	return rows, nil
}
