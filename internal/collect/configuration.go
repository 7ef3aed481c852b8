package collect

import (
	"strings"
)

const (
	// ReportFormatCSV writes one <workflow_id>.csv file per workflow.
	ReportFormatCSV = "csv"
	// ReportFormatSQLite upserts rows into a SQLite database.
	ReportFormatSQLite = "sqlite"

	defaultOutputDirectoryConstant           = "."
	defaultSQLitePathConstant                = "timings.db"
	defaultTokenSourceConstant               = "env:GITHUB_TOKEN"
	defaultBaseURLConstant                   = "https://api.github.com"
	defaultPageSizeConstant                  = 100
	defaultMaximumConcurrentRequestsConstant = 8
	defaultChannelCapacityConstant           = 1
)

// ReportFormats lists the supported report formats.
func ReportFormats() []string {
	return []string{ReportFormatCSV, ReportFormatSQLite}
}

// CommandConfiguration captures the collect settings read from configuration files and the environment.
type CommandConfiguration struct {
	Owner                     string `mapstructure:"owner"`
	Repository                string `mapstructure:"repository"`
	From                      string `mapstructure:"from"`
	To                        string `mapstructure:"to"`
	OutputDirectory           string `mapstructure:"output_directory"`
	Format                    string `mapstructure:"format"`
	SQLitePath                string `mapstructure:"sqlite_path"`
	TokenSource               string `mapstructure:"token_source"`
	BaseURL                   string `mapstructure:"base_url"`
	PageSize                  int    `mapstructure:"page_size"`
	MaximumConcurrentRequests int    `mapstructure:"max_concurrent_requests"`
	ChannelCapacity           int    `mapstructure:"channel_capacity"`
	Progress                  bool   `mapstructure:"progress"`
	DeduplicateRuns           bool   `mapstructure:"deduplicate_runs"`
}

// DefaultConfiguration supplies baseline values for the collect command.
func DefaultConfiguration() CommandConfiguration {
	return CommandConfiguration{
		OutputDirectory:           defaultOutputDirectoryConstant,
		Format:                    ReportFormatCSV,
		SQLitePath:                defaultSQLitePathConstant,
		TokenSource:               defaultTokenSourceConstant,
		BaseURL:                   defaultBaseURLConstant,
		PageSize:                  defaultPageSizeConstant,
		MaximumConcurrentRequests: defaultMaximumConcurrentRequestsConstant,
		ChannelCapacity:           defaultChannelCapacityConstant,
		Progress:                  true,
		DeduplicateRuns:           true,
	}
}

// Sanitize trims configured values and restores defaults for blank or out-of-range settings.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.Owner = strings.TrimSpace(configuration.Owner)
	sanitized.Repository = strings.TrimSpace(configuration.Repository)
	sanitized.From = strings.TrimSpace(configuration.From)
	sanitized.To = strings.TrimSpace(configuration.To)
	sanitized.OutputDirectory = fallbackString(configuration.OutputDirectory, defaults.OutputDirectory)
	sanitized.Format = strings.ToLower(fallbackString(configuration.Format, defaults.Format))
	sanitized.SQLitePath = fallbackString(configuration.SQLitePath, defaults.SQLitePath)
	sanitized.TokenSource = fallbackString(configuration.TokenSource, defaults.TokenSource)
	sanitized.BaseURL = fallbackString(configuration.BaseURL, defaults.BaseURL)

	if sanitized.PageSize <= 0 {
		sanitized.PageSize = defaults.PageSize
	}
	if sanitized.MaximumConcurrentRequests <= 0 {
		sanitized.MaximumConcurrentRequests = defaults.MaximumConcurrentRequests
	}
	if sanitized.ChannelCapacity <= 0 {
		sanitized.ChannelCapacity = defaults.ChannelCapacity
	}

	return sanitized
}

func fallbackString(value string, fallback string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return trimmedValue
}
