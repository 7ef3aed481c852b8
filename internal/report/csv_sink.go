package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultOutputDirectoryConstant       = "."
	csvFileExtensionConstant             = ".csv"
	outputDirectoryPermissionsConstant   = 0o755
	createDirectoryErrorTemplateConstant = "unable to create report directory %s: %w"
	createFileErrorTemplateConstant      = "unable to create report %s: %w"
	writeFileErrorTemplateConstant       = "unable to write report %s: %w"
	reportWrittenMessageConstant         = "Wrote workflow timing report"
	reportSkippedMessageConstant         = "Skipped empty workflow timing report"
	reportPathLogFieldConstant           = "report_path"
	workflowIDLogFieldConstant           = "workflow_id"
	rowCountLogFieldConstant             = "row_count"
)

// CSVSink writes one <workflow_id>.csv file per non-empty summary.
type CSVSink struct {
	logger          *zap.Logger
	outputDirectory string
}

// NewCSVSink constructs a CSVSink writing into the output directory, which defaults to the working directory.
func NewCSVSink(logger *zap.Logger, outputDirectory string) *CSVSink {
	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}
	resolvedDirectory := strings.TrimSpace(outputDirectory)
	if len(resolvedDirectory) == 0 {
		resolvedDirectory = defaultOutputDirectoryConstant
	}
	return &CSVSink{logger: resolvedLogger, outputDirectory: resolvedDirectory}
}

// ReportPath returns the file the workflow's report is written to.
func (sink *CSVSink) ReportPath(workflowID int64) string {
	return filepath.Join(sink.outputDirectory, strconv.FormatInt(workflowID, 10)+csvFileExtensionConstant)
}

func (sink *CSVSink) Write(executionContext context.Context, summary Summary) error {
	if summary.Empty() {
		sink.logger.Debug(reportSkippedMessageConstant, zap.Int64(workflowIDLogFieldConstant, summary.Workflow.ID))
		return nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	if directoryError := os.MkdirAll(sink.outputDirectory, outputDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(createDirectoryErrorTemplateConstant, sink.outputDirectory, directoryError)
	}

	reportPath := sink.ReportPath(summary.Workflow.ID)
	reportFile, createError := os.Create(reportPath)
	if createError != nil {
		return fmt.Errorf(createFileErrorTemplateConstant, reportPath, createError)
	}

	writeError := writeSummaryCSV(reportFile, summary)
	closeError := reportFile.Close()
	if writeError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, reportPath, writeError)
	}
	if closeError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, reportPath, closeError)
	}

	sink.logger.Info(
		reportWrittenMessageConstant,
		zap.String(reportPathLogFieldConstant, reportPath),
		zap.Int64(workflowIDLogFieldConstant, summary.Workflow.ID),
		zap.Int(rowCountLogFieldConstant, len(summary.Rows)),
	)
	return nil
}

func writeSummaryCSV(reportFile *os.File, summary Summary) error {
	csvWriter := csv.NewWriter(reportFile)
	if writeError := csvWriter.Write(Header()); writeError != nil {
		return writeError
	}
	for rowIndex := range summary.Rows {
		if writeError := csvWriter.Write(summary.Rows[rowIndex].CSVRecord()); writeError != nil {
			return writeError
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
