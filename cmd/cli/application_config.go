package cli

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/actions-timing/internal/collect"
)

//go:embed default_config.yaml
var embeddedDefaultConfigurationContent []byte

const embeddedDefaultConfigurationTypeConstant = "yaml"

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common  ApplicationCommonConfiguration `mapstructure:"common"`
	Collect collect.CommandConfiguration   `mapstructure:"collect"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type configurationInitializationPlan struct {
	DirectoryPath string
	FilePath      string
}

// EmbeddedDefaultConfiguration returns the configuration compiled into the binary and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), embeddedDefaultConfigurationContent...), embeddedDefaultConfigurationTypeConstant
}

func configurationDefaultValues() map[string]any {
	collectDefaults := collect.DefaultConfiguration()
	return map[string]any{
		commonLogLevelConfigKeyConstant:                              defaultLogLevelConstant,
		commonLogFormatConfigKeyConstant:                             defaultLogFormatConstant,
		collectConfigurationKeyConstant + ".owner":                   collectDefaults.Owner,
		collectConfigurationKeyConstant + ".repository":              collectDefaults.Repository,
		collectConfigurationKeyConstant + ".from":                    collectDefaults.From,
		collectConfigurationKeyConstant + ".to":                      collectDefaults.To,
		collectConfigurationKeyConstant + ".output_directory":        collectDefaults.OutputDirectory,
		collectConfigurationKeyConstant + ".format":                  collectDefaults.Format,
		collectConfigurationKeyConstant + ".sqlite_path":             collectDefaults.SQLitePath,
		collectConfigurationKeyConstant + ".token_source":            collectDefaults.TokenSource,
		collectConfigurationKeyConstant + ".base_url":                collectDefaults.BaseURL,
		collectConfigurationKeyConstant + ".page_size":               collectDefaults.PageSize,
		collectConfigurationKeyConstant + ".max_concurrent_requests": collectDefaults.MaximumConcurrentRequests,
		collectConfigurationKeyConstant + ".channel_capacity":        collectDefaults.ChannelCapacity,
		collectConfigurationKeyConstant + ".progress":                collectDefaults.Progress,
		collectConfigurationKeyConstant + ".deduplicate_runs":        collectDefaults.DeduplicateRuns,
	}
}

// validateConfigurationContent ensures the content is a YAML mapping before it is written to disk.
func validateConfigurationContent(configurationContent []byte) error {
	var document map[string]any
	if decodeError := yaml.Unmarshal(configurationContent, &document); decodeError != nil {
		return fmt.Errorf(configurationInitializationInvalidContentTemplateConstant, decodeError)
	}
	if len(document) == 0 {
		return errors.New(configurationInitializationContentUnavailableErrorConstant)
	}
	return nil
}

func (application *Application) handleConfigurationInitialization() (bool, error) {
	if !application.configurationInitializationRequested {
		return false, nil
	}

	initializationScope := strings.TrimSpace(application.configurationInitializationScope)
	if len(initializationScope) == 0 {
		initializationScope = configurationInitializationDefaultScopeConstant
	}

	initializationPlan, planError := application.resolveConfigurationInitializationPlan(initializationScope)
	if planError != nil {
		return true, planError
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if validationError := validateConfigurationContent(configurationContent); validationError != nil {
		return true, validationError
	}

	if writeError := application.writeConfigurationFile(initializationPlan, configurationContent); writeError != nil {
		return true, writeError
	}

	application.logger.Info(
		configurationInitializationSuccessMessageConstant,
		zap.String(configurationFileFieldConstant, initializationPlan.FilePath),
	)

	return true, nil
}

func (application *Application) resolveConfigurationInitializationPlan(initializationScope string) (configurationInitializationPlan, error) {
	normalizedScope := strings.ToLower(strings.TrimSpace(initializationScope))
	switch normalizedScope {
	case "", configurationInitializationScopeLocalConstant:
		workingDirectoryPath, workingDirectoryError := application.workingDirectoryResolver()
		if workingDirectoryError != nil {
			return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationWorkingDirectoryErrorTemplateConstant, workingDirectoryError)
		}

		trimmedWorkingDirectoryPath := strings.TrimSpace(workingDirectoryPath)
		if len(trimmedWorkingDirectoryPath) == 0 {
			return configurationInitializationPlan{}, fmt.Errorf(
				configurationInitializationWorkingDirectoryErrorTemplateConstant,
				errors.New(configurationInitializationWorkingDirectoryEmptyErrorConstant),
			)
		}

		return configurationInitializationPlan{
			DirectoryPath: trimmedWorkingDirectoryPath,
			FilePath:      filepath.Join(trimmedWorkingDirectoryPath, configurationFileNameConstant),
		}, nil
	case configurationInitializationScopeUserConstant:
		userHomeDirectoryPath, userHomeDirectoryError := application.homeDirectoryResolver()
		if userHomeDirectoryError != nil {
			return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationHomeDirectoryErrorTemplateConstant, userHomeDirectoryError)
		}

		trimmedHomeDirectoryPath := strings.TrimSpace(userHomeDirectoryPath)
		if len(trimmedHomeDirectoryPath) == 0 {
			return configurationInitializationPlan{}, fmt.Errorf(
				configurationInitializationHomeDirectoryErrorTemplateConstant,
				errors.New(configurationInitializationHomeDirectoryEmptyErrorConstant),
			)
		}

		configurationDirectoryPath := filepath.Join(trimmedHomeDirectoryPath, userConfigurationDirectoryNameConstant)

		return configurationInitializationPlan{
			DirectoryPath: configurationDirectoryPath,
			FilePath:      filepath.Join(configurationDirectoryPath, configurationFileNameConstant),
		}, nil
	default:
		return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationUnsupportedScopeTemplateConstant, strings.TrimSpace(initializationScope))
	}
}

func (application *Application) writeConfigurationFile(initializationPlan configurationInitializationPlan, configurationContent []byte) error {
	directoryPath := strings.TrimSpace(initializationPlan.DirectoryPath)

	directoryInfo, directoryStatError := os.Stat(directoryPath)
	switch {
	case directoryStatError == nil:
		if !directoryInfo.IsDir() {
			return fmt.Errorf(configurationInitializationDirectoryConflictTemplateConstant, directoryPath)
		}
	case errors.Is(directoryStatError, os.ErrNotExist):
		if createError := os.MkdirAll(directoryPath, configurationDirectoryPermissionConstant); createError != nil {
			return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, directoryPath, createError)
		}
	default:
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, directoryPath, directoryStatError)
	}

	fileInfo, fileStatError := os.Stat(initializationPlan.FilePath)
	switch {
	case fileStatError == nil:
		if fileInfo.IsDir() {
			return fmt.Errorf(configurationInitializationExistingDirectoryTemplateConstant, initializationPlan.FilePath)
		}
		if !application.configurationInitializationForced {
			return fmt.Errorf(configurationInitializationExistingFileTemplateConstant, initializationPlan.FilePath)
		}
	case errors.Is(fileStatError, os.ErrNotExist):
	default:
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, initializationPlan.FilePath, fileStatError)
	}

	writeError := os.WriteFile(initializationPlan.FilePath, configurationContent, configurationFilePermissionConstant)
	if writeError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, initializationPlan.FilePath, writeError)
	}

	return nil
}
