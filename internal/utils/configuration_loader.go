package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant             = "."
	environmentKeyReplacementConstant           = "_"
	embeddedConfigurationMergeErrorTemplate     = "unable to merge embedded configuration: %w"
	configurationFileReadErrorTemplateConstant  = "unable to read configuration file %s: %w"
	configurationSearchErrorTemplateConstant    = "unable to load configuration from search paths: %w"
	configurationDecodeErrorTemplateConstant    = "unable to decode configuration: %w"
	configurationTargetMissingErrorMessageConst = "configuration target must be provided"
)

// LoadedConfiguration describes where the effective configuration came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers defaults, embedded configuration, configuration files, and environment variables.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	embeddedConfigurationData []byte
	embeddedConfigurationType string
}

// NewConfigurationLoader constructs a loader that searches the provided directories for name.type files.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	copiedSearchPaths := make([]string, 0, len(searchPaths))
	for _, searchPath := range searchPaths {
		trimmedSearchPath := strings.TrimSpace(searchPath)
		if len(trimmedSearchPath) == 0 {
			continue
		}
		copiedSearchPaths = append(copiedSearchPaths, trimmedSearchPath)
	}

	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       copiedSearchPaths,
	}
}

// SetEmbeddedConfiguration registers configuration content compiled into the binary.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	loader.embeddedConfigurationData = append([]byte(nil), configurationData...)
	loader.embeddedConfigurationType = configurationType
}

// LoadConfiguration decodes the layered configuration into target and reports the configuration file that was used.
// Precedence from lowest to highest: defaults, embedded configuration, configuration file, environment.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, errors.New(configurationTargetMissingErrorMessageConst)
	}

	viperInstance := viper.New()
	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedConfigurationData) > 0 {
		embeddedType := loader.embeddedConfigurationType
		if len(strings.TrimSpace(embeddedType)) == 0 {
			embeddedType = loader.configurationType
		}
		viperInstance.SetConfigType(embeddedType)
		if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfigurationData)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplate, mergeError)
		}
	}

	trimmedConfigurationFilePath := strings.TrimSpace(configurationFilePath)
	if len(trimmedConfigurationFilePath) > 0 {
		viperInstance.SetConfigFile(trimmedConfigurationFilePath)
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorTemplateConstant, trimmedConfigurationFilePath, mergeError)
		}
	} else if len(loader.searchPaths) > 0 {
		viperInstance.SetConfigName(loader.configurationName)
		viperInstance.SetConfigType(loader.configurationType)
		for _, searchPath := range loader.searchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			var notFoundError viper.ConfigFileNotFoundError
			if !errors.As(mergeError, &notFoundError) {
				return LoadedConfiguration{}, fmt.Errorf(configurationSearchErrorTemplateConstant, mergeError)
			}
		}
	}

	if len(loader.environmentPrefix) > 0 {
		viperInstance.SetEnvPrefix(loader.environmentPrefix)
	}
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorConstant, environmentKeyReplacementConstant))
	viperInstance.AutomaticEnv()

	if decodeError := viperInstance.Unmarshal(target); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: viperInstance.ConfigFileUsed()}, nil
}
