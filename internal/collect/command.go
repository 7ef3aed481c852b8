package collect

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/actions-timing/internal/actions"
	"github.com/tyemirov/actions-timing/internal/collector"
	"github.com/tyemirov/actions-timing/internal/credentials"
	"github.com/tyemirov/actions-timing/internal/report"
	"github.com/tyemirov/actions-timing/internal/utils"
	flagutils "github.com/tyemirov/actions-timing/internal/utils/flags"
	"github.com/tyemirov/actions-timing/internal/window"
)

const (
	commandUseConstant                    = "collect"
	commandAliasConstant                  = "c"
	commandShortDescriptionConstant       = "Collect GitHub Actions run timings into per-workflow reports"
	commandLongDescriptionConstant        = "collect lists every workflow of a repository, gathers the runs created between --from and --to (inclusive), fetches the billable timing of each run, and writes one report per workflow."
	commandExampleConstant                = "actions-timing collect --owner octo --repository widgets --from 2024-01-01 --to 2024-01-31"
	ownerFlagNameConstant                 = "owner"
	ownerFlagShorthandConstant            = "o"
	ownerFlagUsageConstant                = "Repository owner (user or organization)"
	repositoryFlagNameConstant            = "repository"
	repositoryFlagShorthandConstant       = "r"
	repositoryFlagUsageConstant           = "Repository name"
	fromFlagNameConstant                  = "from"
	fromFlagUsageConstant                 = "Inclusive start date (YYYY-MM-DD, UTC)"
	toFlagNameConstant                    = "to"
	toFlagUsageConstant                   = "Inclusive end date (YYYY-MM-DD, UTC)"
	outputFlagNameConstant                = "output"
	outputFlagShorthandConstant           = "d"
	outputFlagUsageConstant               = "Directory receiving <workflow_id>.csv reports"
	formatFlagNameConstant                = "format"
	formatFlagUsageConstant               = "Report format"
	sqlitePathFlagNameConstant            = "sqlite-path"
	sqlitePathFlagUsageConstant           = "SQLite database receiving rows when --format=sqlite"
	tokenSourceFlagNameConstant           = "token-source"
	tokenSourceFlagUsageConstant          = "Token source (env:NAME, file:/path, or NAME)"
	baseURLFlagNameConstant               = "base-url"
	baseURLFlagUsageConstant              = "GitHub API base URL"
	concurrencyFlagNameConstant           = "concurrency"
	concurrencyFlagUsageConstant          = "Maximum concurrent API requests"
	pageSizeFlagNameConstant              = "page-size"
	pageSizeFlagUsageConstant             = "Runs requested per page (1-100)"
	progressFlagNameConstant              = "progress"
	progressFlagUsageConstant             = "Render a progress bar per workflow"
	unexpectedArgumentsMessageConstant    = "collect does not accept positional arguments"
	ownerMissingMessageConstant           = "repository owner must be provided (--owner)"
	repositoryMissingMessageConstant      = "repository name must be provided (--repository)"
	fromMissingMessageConstant            = "start date must be provided (--from)"
	toMissingMessageConstant              = "end date must be provided (--to)"
	unsupportedFormatTemplateConstant     = "unsupported report format %q"
	tokenSourceParseErrorTemplateConstant = "invalid token source: %w"
	commandExecutionErrorTemplateConstant = "collect failed: %w"
	droppedTimingsMessageConstant         = "Some run timings could not be fetched and were left out of the reports"
	droppedTimingsLogFieldConstant        = "dropped_timings"
	sinkCloseFailedMessageConstant        = "Failed to close report sink"
	completionTemplateConstant            = "Collected %s rows from %s runs across %s workflows into %s reports (%s timings dropped)\n"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current collect configuration.
type ConfigurationProvider func() CommandConfiguration

// SinkFactory builds the report sink for a configuration. The returned closer is called once the collection ends.
type SinkFactory func(logger *zap.Logger, configuration CommandConfiguration) (report.Sink, func() error, error)

// ProgressFactory builds the progress reporter for a configuration.
type ProgressFactory func(logger *zap.Logger, output io.Writer, configuration CommandConfiguration) collector.ProgressReporter

// CommandBuilder assembles the collect command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConsoleLoggerProvider LoggerProvider
	ConfigurationProvider ConfigurationProvider
	HTTPClient            actions.HTTPClient
	TokenResolver         credentials.TokenResolver
	SinkFactory           SinkFactory
	ProgressFactory       ProgressFactory
}

// Build constructs the collect command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	collectCommand := &cobra.Command{
		Use:     commandUseConstant,
		Aliases: []string{commandAliasConstant},
		Short:   commandShortDescriptionConstant,
		Long:    commandLongDescriptionConstant,
		Example: commandExampleConstant,
		RunE:    builder.run,
	}

	defaults := DefaultConfiguration()
	flagSet := collectCommand.Flags()
	flagSet.StringP(ownerFlagNameConstant, ownerFlagShorthandConstant, "", ownerFlagUsageConstant)
	flagSet.StringP(repositoryFlagNameConstant, repositoryFlagShorthandConstant, "", repositoryFlagUsageConstant)
	flagSet.String(fromFlagNameConstant, "", fromFlagUsageConstant)
	flagSet.String(toFlagNameConstant, "", toFlagUsageConstant)
	flagSet.StringP(outputFlagNameConstant, outputFlagShorthandConstant, defaults.OutputDirectory, outputFlagUsageConstant)
	flagSet.String(formatFlagNameConstant, defaults.Format, flagutils.FormatChoiceUsage(defaults.Format, ReportFormats(), formatFlagUsageConstant))
	flagSet.String(sqlitePathFlagNameConstant, defaults.SQLitePath, sqlitePathFlagUsageConstant)
	flagSet.String(tokenSourceFlagNameConstant, defaults.TokenSource, tokenSourceFlagUsageConstant)
	flagSet.String(baseURLFlagNameConstant, defaults.BaseURL, baseURLFlagUsageConstant)
	flagSet.Int(concurrencyFlagNameConstant, defaults.MaximumConcurrentRequests, concurrencyFlagUsageConstant)
	flagSet.Int(pageSizeFlagNameConstant, defaults.PageSize, pageSizeFlagUsageConstant)
	flagSet.Bool(progressFlagNameConstant, defaults.Progress, progressFlagUsageConstant)

	return collectCommand, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessageConstant)
	}

	configuration, flagError := builder.applyFlagOverrides(command, builder.resolveConfiguration())
	if flagError != nil {
		return flagError
	}

	options, optionsError := buildOptions(configuration)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()

	sink, closeSink, sinkError := builder.resolveSinkFactory()(logger, configuration)
	if sinkError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, sinkError)
	}
	defer func() {
		if closeSink == nil {
			return
		}
		if closeError := closeSink(); closeError != nil {
			logger.Warn(sinkCloseFailedMessageConstant, zap.Error(closeError))
		}
	}()

	progress := builder.resolveProgressFactory()(logger, command.ErrOrStderr(), configuration)

	service, serviceError := NewService(logger, builder.HTTPClient, builder.TokenResolver, sink, progress)
	if serviceError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, serviceError)
	}

	contextAccessor := utils.NewCommandContextAccessor()
	executionContext := contextAccessor.WithCollectionIdentifier(command.Context(), uuid.NewString())

	result, executionError := service.Execute(executionContext, options)
	if executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}

	if result.DroppedTimings > 0 {
		builder.resolveConsoleLogger().Warn(droppedTimingsMessageConstant, zap.Int(droppedTimingsLogFieldConstant, result.DroppedTimings))
	}

	_, printError := fmt.Fprintf(
		command.OutOrStdout(),
		completionTemplateConstant,
		humanize.Comma(int64(result.Rows)),
		humanize.Comma(int64(result.Runs)),
		humanize.Comma(int64(result.Workflows)),
		humanize.Comma(int64(result.Reports)),
		humanize.Comma(int64(result.DroppedTimings)),
	)
	return printError
}

func (builder *CommandBuilder) applyFlagOverrides(command *cobra.Command, configuration CommandConfiguration) (CommandConfiguration, error) {
	stringOverrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: ownerFlagNameConstant, target: &configuration.Owner},
		{flagName: repositoryFlagNameConstant, target: &configuration.Repository},
		{flagName: fromFlagNameConstant, target: &configuration.From},
		{flagName: toFlagNameConstant, target: &configuration.To},
		{flagName: outputFlagNameConstant, target: &configuration.OutputDirectory},
		{flagName: formatFlagNameConstant, target: &configuration.Format},
		{flagName: sqlitePathFlagNameConstant, target: &configuration.SQLitePath},
		{flagName: tokenSourceFlagNameConstant, target: &configuration.TokenSource},
		{flagName: baseURLFlagNameConstant, target: &configuration.BaseURL},
	}
	for _, override := range stringOverrides {
		value, changed, lookupError := flagutils.StringFlag(command, override.flagName)
		if lookupError != nil {
			return CommandConfiguration{}, lookupError
		}
		if changed {
			*override.target = value
		}
	}

	integerOverrides := []struct {
		flagName string
		target   *int
	}{
		{flagName: concurrencyFlagNameConstant, target: &configuration.MaximumConcurrentRequests},
		{flagName: pageSizeFlagNameConstant, target: &configuration.PageSize},
	}
	for _, override := range integerOverrides {
		value, changed, lookupError := flagutils.IntFlag(command, override.flagName)
		if lookupError != nil {
			return CommandConfiguration{}, lookupError
		}
		if changed {
			*override.target = value
		}
	}

	progressValue, progressChanged, progressError := flagutils.BoolFlag(command, progressFlagNameConstant)
	if progressError != nil {
		return CommandConfiguration{}, progressError
	}
	if progressChanged {
		configuration.Progress = progressValue
	}

	return configuration.Sanitize(), nil
}

func buildOptions(configuration CommandConfiguration) (Options, error) {
	if len(configuration.Owner) == 0 {
		return Options{}, errors.New(ownerMissingMessageConstant)
	}
	if len(configuration.Repository) == 0 {
		return Options{}, errors.New(repositoryMissingMessageConstant)
	}
	if len(configuration.From) == 0 {
		return Options{}, errors.New(fromMissingMessageConstant)
	}
	if len(configuration.To) == 0 {
		return Options{}, errors.New(toMissingMessageConstant)
	}

	dateWindow, windowError := window.ParseWindow(configuration.From, configuration.To)
	if windowError != nil {
		return Options{}, windowError
	}

	tokenSource, tokenSourceError := credentials.ParseTokenSource(configuration.TokenSource)
	if tokenSourceError != nil {
		return Options{}, fmt.Errorf(tokenSourceParseErrorTemplateConstant, tokenSourceError)
	}

	return Options{
		Repository:  actions.Repository{Owner: configuration.Owner, Name: configuration.Repository},
		Window:      dateWindow,
		TokenSource: tokenSource,
		BaseURL:     configuration.BaseURL,
		PageSize:    configuration.PageSize,
		Collector: collector.Configuration{
			MaximumConcurrentRequests: configuration.MaximumConcurrentRequests,
			ChannelCapacity:           configuration.ChannelCapacity,
			DeduplicateRuns:           configuration.DeduplicateRuns,
		},
	}, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConsoleLogger() *zap.Logger {
	if builder.ConsoleLoggerProvider == nil {
		return zap.NewNop()
	}

	consoleLogger := builder.ConsoleLoggerProvider()
	if consoleLogger == nil {
		return zap.NewNop()
	}

	return consoleLogger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveSinkFactory() SinkFactory {
	if builder.SinkFactory != nil {
		return builder.SinkFactory
	}
	return DefaultSinkFactory
}

func (builder *CommandBuilder) resolveProgressFactory() ProgressFactory {
	if builder.ProgressFactory != nil {
		return builder.ProgressFactory
	}
	return DefaultProgressFactory
}

// DefaultSinkFactory writes CSV reports into the output directory, or rows into a SQLite database.
func DefaultSinkFactory(logger *zap.Logger, configuration CommandConfiguration) (report.Sink, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(configuration.Format)) {
	case ReportFormatCSV:
		return report.NewCSVSink(logger, configuration.OutputDirectory), nil, nil
	case ReportFormatSQLite:
		sqliteSink, openError := report.OpenSQLiteSink(logger, configuration.SQLitePath)
		if openError != nil {
			return nil, nil, openError
		}
		return sqliteSink, sqliteSink.Close, nil
	default:
		return nil, nil, fmt.Errorf(unsupportedFormatTemplateConstant, configuration.Format)
	}
}

// DefaultProgressFactory renders a progress bar on the output when progress is enabled and logs progress otherwise.
func DefaultProgressFactory(logger *zap.Logger, output io.Writer, configuration CommandConfiguration) collector.ProgressReporter {
	if configuration.Progress && output != nil {
		return collector.NewConsoleProgress(output)
	}
	return collector.NewLogProgress(logger)
}
