package collector

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tyemirov/actions-timing/internal/utils"
)

const (
	progressBarWidthConstant          = 30
	progressFilledGlyphConstant       = "█"
	progressEmptyGlyphConstant        = "░"
	progressLineTemplateConstant      = "\r%s %s %d/%d"
	progressFinishedSuffixConstant    = "\n"
	progressStartedMessageConstant    = "Started timing collection"
	progressAdvancedMessageConstant   = "Collected run timing outcome"
	progressFinishedMessageConstant   = "Finished timing collection"
	progressNameLogFieldConstant      = "workflow_name"
	progressTotalLogFieldConstant     = "total_runs"
	progressCompletedLogFieldConstant = "completed_runs"
)

var (
	progressNameStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))

	progressFilledStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	progressEmptyStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
)

// ProgressReporter receives discrete progress signals for one workflow at a time.
type ProgressReporter interface {
	Start(name string, total int)
	Increment()
	Finish()
}

// NopProgress discards progress signals.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Increment()        {}
func (NopProgress) Finish()           {}

// LogProgress reports progress through a zap logger.
type LogProgress struct {
	logger    *zap.Logger
	name      string
	total     int
	completed int
}

// NewLogProgress constructs a LogProgress.
func NewLogProgress(logger *zap.Logger) *LogProgress {
	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}
	return &LogProgress{logger: resolvedLogger}
}

func (progress *LogProgress) Start(name string, total int) {
	progress.name = name
	progress.total = total
	progress.completed = 0
	progress.logger.Info(
		progressStartedMessageConstant,
		zap.String(progressNameLogFieldConstant, name),
		zap.Int(progressTotalLogFieldConstant, total),
	)
}

func (progress *LogProgress) Increment() {
	progress.completed++
	progress.logger.Debug(
		progressAdvancedMessageConstant,
		zap.String(progressNameLogFieldConstant, progress.name),
		zap.Int(progressCompletedLogFieldConstant, progress.completed),
		zap.Int(progressTotalLogFieldConstant, progress.total),
	)
}

func (progress *LogProgress) Finish() {
	progress.logger.Info(
		progressFinishedMessageConstant,
		zap.String(progressNameLogFieldConstant, progress.name),
		zap.Int(progressCompletedLogFieldConstant, progress.completed),
		zap.Int(progressTotalLogFieldConstant, progress.total),
	)
}

// ConsoleProgress draws a single-line progress bar named after the workflow.
type ConsoleProgress struct {
	writer    io.Writer
	name      string
	total     int
	completed int
}

// NewConsoleProgress constructs a ConsoleProgress writing to the destination, flushing after every redraw.
func NewConsoleProgress(destination io.Writer) *ConsoleProgress {
	return &ConsoleProgress{writer: utils.NewFlushingWriter(destination)}
}

func (progress *ConsoleProgress) Start(name string, total int) {
	progress.name = name
	progress.total = total
	progress.completed = 0
	progress.render()
}

func (progress *ConsoleProgress) Increment() {
	if progress.completed < progress.total {
		progress.completed++
	}
	progress.render()
}

func (progress *ConsoleProgress) Finish() {
	_, _ = io.WriteString(progress.writer, progressFinishedSuffixConstant)
}

func (progress *ConsoleProgress) render() {
	_, _ = fmt.Fprintf(
		progress.writer,
		progressLineTemplateConstant,
		progressNameStyle.Render(progress.name),
		renderProgressBar(progress.completed, progress.total),
		progress.completed,
		progress.total,
	)
}

func renderProgressBar(completed int, total int) string {
	filledWidth := progressBarWidthConstant
	if total > 0 {
		filledWidth = completed * progressBarWidthConstant / total
	}
	emptyWidth := progressBarWidthConstant - filledWidth
	return progressFilledStyle.Render(strings.Repeat(progressFilledGlyphConstant, filledWidth)) +
		progressEmptyStyle.Render(strings.Repeat(progressEmptyGlyphConstant, emptyWidth))
}
