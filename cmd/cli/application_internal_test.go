package cli

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	testTokenEnvironmentVariableConstant = "ACTIONS_TIMING_CLI_TEST_TOKEN"
	testTokenValueConstant               = "cli-test-token"
)

func newTestApplication(testingInstance *testing.T, workingDirectory string, homeDirectory string) (*Application, *bytes.Buffer) {
	testingInstance.Helper()

	application := NewApplication()
	application.workingDirectoryResolver = func() (string, error) { return workingDirectory, nil }
	application.homeDirectoryResolver = func() (string, error) { return homeDirectory, nil }
	application.versionResolver = func() string { return "v0.0.0-test" }

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(io.Discard)
	return application, output
}

func TestNormalizeInitializationScopeArguments(testingInstance *testing.T) {
	testingInstance.Parallel()

	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{
			name:      "empty",
			arguments: nil,
			expected:  nil,
		},
		{
			name:      "bare_flag_at_end",
			arguments: []string{"--init"},
			expected:  []string{"--init=local"},
		},
		{
			name:      "bare_flag_before_other_flag",
			arguments: []string{"--init", "--force"},
			expected:  []string{"--init=local", "--force"},
		},
		{
			name:      "explicit_scope",
			arguments: []string{"--init", "user"},
			expected:  []string{"--init", "user"},
		},
		{
			name:      "empty_assignment",
			arguments: []string{"--init="},
			expected:  []string{"--init=local"},
		},
		{
			name:      "unrelated_arguments",
			arguments: []string{"collect", "--owner", "octo"},
			expected:  []string{"collect", "--owner", "octo"},
		},
	}

	for index := range testCases {
		testCase := testCases[index]

		testingInstance.Run(testCase.name, func(testingSubInstance *testing.T) {
			testingSubInstance.Parallel()
			require.Equal(testingSubInstance, testCase.expected, normalizeInitializationScopeArguments(testCase.arguments))
		})
	}
}

func TestConfigurationInitializationWritesEmbeddedConfiguration(testingInstance *testing.T) {
	testingInstance.Parallel()

	workingDirectory := testingInstance.TempDir()
	homeDirectory := testingInstance.TempDir()

	testCases := []struct {
		name             string
		arguments        []string
		expectedFilePath string
	}{
		{
			name:             "local_scope",
			arguments:        []string{"--init"},
			expectedFilePath: filepath.Join(workingDirectory, "config.yaml"),
		},
		{
			name:             "user_scope",
			arguments:        []string{"--init", "user"},
			expectedFilePath: filepath.Join(homeDirectory, ".actions-timing", "config.yaml"),
		},
	}

	for index := range testCases {
		testCase := testCases[index]

		testingInstance.Run(testCase.name, func(testingSubInstance *testing.T) {
			application, _ := newTestApplication(testingSubInstance, workingDirectory, homeDirectory)
			require.NoError(testingSubInstance, application.ExecuteWithArguments(testCase.arguments))

			content, readError := os.ReadFile(testCase.expectedFilePath)
			require.NoError(testingSubInstance, readError)

			var document map[string]map[string]any
			require.NoError(testingSubInstance, yaml.Unmarshal(content, &document))
			require.Equal(testingSubInstance, "csv", document["collect"]["format"])
			require.Equal(testingSubInstance, "env:GITHUB_TOKEN", document["collect"]["token_source"])

			repeatedApplication, _ := newTestApplication(testingSubInstance, workingDirectory, homeDirectory)
			repeatError := repeatedApplication.ExecuteWithArguments(testCase.arguments)
			require.ErrorContains(testingSubInstance, repeatError, "already exists")

			forcedApplication, _ := newTestApplication(testingSubInstance, workingDirectory, homeDirectory)
			require.NoError(testingSubInstance, forcedApplication.ExecuteWithArguments(append(append([]string{}, testCase.arguments...), "--force")))
		})
	}
}

func TestConfigurationInitializationRejectsUnknownScope(testingInstance *testing.T) {
	testingInstance.Parallel()

	application, _ := newTestApplication(testingInstance, testingInstance.TempDir(), testingInstance.TempDir())
	initializationError := application.ExecuteWithArguments([]string{"--init", "global"})
	require.ErrorContains(testingInstance, initializationError, `unsupported initialization scope "global"`)
}

func TestVersionOutput(testingInstance *testing.T) {
	testingInstance.Parallel()

	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "command", arguments: []string{"version"}},
		{name: "flag", arguments: []string{"--version"}},
	}

	for index := range testCases {
		testCase := testCases[index]

		testingInstance.Run(testCase.name, func(testingSubInstance *testing.T) {
			testingSubInstance.Parallel()

			application, output := newTestApplication(testingSubInstance, testingSubInstance.TempDir(), testingSubInstance.TempDir())
			require.NoError(testingSubInstance, application.ExecuteWithArguments(testCase.arguments))
			require.Equal(testingSubInstance, "actions-timing version: v0.0.0-test\n", output.String())
		})
	}
}

func TestInvalidLogLevelIsRejected(testingInstance *testing.T) {
	testingInstance.Parallel()

	application, _ := newTestApplication(testingInstance, testingInstance.TempDir(), testingInstance.TempDir())
	executionError := application.ExecuteWithArguments([]string{"--log-level", "verbose", "version"})
	require.ErrorContains(testingInstance, executionError, "unable to create logger")
}

func TestEmbeddedConfigurationDecodesToDefaults(testingInstance *testing.T) {
	testingInstance.Parallel()

	content, configurationType := EmbeddedDefaultConfiguration()
	require.Equal(testingInstance, "yaml", configurationType)
	require.NoError(testingInstance, validateConfigurationContent(content))
	require.Error(testingInstance, validateConfigurationContent([]byte("collect: [unterminated")))
	require.Error(testingInstance, validateConfigurationContent([]byte("")))

	application, _ := newTestApplication(testingInstance, testingInstance.TempDir(), testingInstance.TempDir())
	require.NoError(testingInstance, application.ExecuteWithArguments([]string{"--config", writeConfigurationFile(testingInstance, "common:\n  log_level: error\n"), "version"}))
	require.Equal(testingInstance, "error", application.configuration.Common.LogLevel)
	require.Equal(testingInstance, "structured", application.configuration.Common.LogFormat)

	collectConfiguration := application.collectConfiguration()
	require.Equal(testingInstance, "csv", collectConfiguration.Format)
	require.Equal(testingInstance, 8, collectConfiguration.MaximumConcurrentRequests)
	require.True(testingInstance, collectConfiguration.Progress)
	require.True(testingInstance, collectConfiguration.DeduplicateRuns)
}

func writeConfigurationFile(testingInstance *testing.T, content string) string {
	testingInstance.Helper()

	configurationPath := filepath.Join(testingInstance.TempDir(), "config.yaml")
	require.NoError(testingInstance, os.WriteFile(configurationPath, []byte(content), 0o600))
	return configurationPath
}

func newSingleWorkflowServer(testingInstance *testing.T) *httptest.Server {
	testingInstance.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/widgets/actions/workflows", func(responseWriter http.ResponseWriter, httpRequest *http.Request) {
		_, _ = fmt.Fprint(responseWriter, `{"total_count":1,"workflows":[{"id":7,"name":"CI"}]}`)
	})
	mux.HandleFunc("GET /repos/octo/widgets/actions/workflows/7/runs", func(responseWriter http.ResponseWriter, httpRequest *http.Request) {
		_, _ = fmt.Fprint(responseWriter, `{"total_count":2,"workflow_runs":[{"id":71,"created_at":"2024-01-03T10:00:00Z","status":"completed"},{"id":70,"created_at":"2023-12-30T10:00:00Z","status":"completed"}]}`)
	})
	mux.HandleFunc("GET /repos/octo/widgets/actions/runs/71/timing", func(responseWriter http.ResponseWriter, httpRequest *http.Request) {
		_, _ = fmt.Fprint(responseWriter, `{"billable":{"UBUNTU":{"total_ms":120000},"WINDOWS":{"total_ms":0}},"run_duration_ms":130000}`)
	})

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, httpRequest *http.Request) {
		if httpRequest.Header.Get("Authorization") != "Bearer "+testTokenValueConstant {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(responseWriter, httpRequest)
	}))
	testingInstance.Cleanup(server.Close)
	return server
}

func TestCollectCommandUsesConfigurationFileAndEnvironment(testingInstance *testing.T) {
	server := newSingleWorkflowServer(testingInstance)
	outputDirectory := testingInstance.TempDir()

	testingInstance.Setenv(testTokenEnvironmentVariableConstant, testTokenValueConstant)
	testingInstance.Setenv("ACTIONS_TIMING_COLLECT_OWNER", "octo")

	configurationPath := writeConfigurationFile(testingInstance, fmt.Sprintf(`collect:
  owner: ignored-owner
  repository: widgets
  output_directory: %s
  token_source: env:%s
  base_url: %s
  progress: false
`, outputDirectory, testTokenEnvironmentVariableConstant, server.URL))

	application, output := newTestApplication(testingInstance, testingInstance.TempDir(), testingInstance.TempDir())
	executionError := application.ExecuteWithArguments([]string{
		"--config", configurationPath,
		"c",
		"--from", "2024-01-01",
		"--to", "2024-01-31",
	})
	require.NoError(testingInstance, executionError)
	require.Equal(testingInstance, configurationPath, application.ConfigFileUsed())
	require.Equal(testingInstance, "Collected 1 rows from 1 runs across 1 workflows into 1 reports (0 timings dropped)\n", output.String())

	reportFile, openError := os.Open(filepath.Join(outputDirectory, "7.csv"))
	require.NoError(testingInstance, openError)
	defer reportFile.Close()

	records, readError := csv.NewReader(reportFile).ReadAll()
	require.NoError(testingInstance, readError)
	require.Equal(testingInstance, []string{"widgets", "7", "CI", "71", "2024-01-03T10:00:00Z", "completed", "120000", "0", "0", "130000"}, records[1])
}
