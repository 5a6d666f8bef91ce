package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/binrunner/internal/execshell"
)

const (
	testQuietLogLevelConstant         = "error"
	testConfigurationFileNameConstant = "config.yaml"
	testScriptNameConstant            = "greet.sh"
	testScriptContentConstant         = "#!/bin/sh\necho \"greetings $1\"\n"
	testRequestFileNameConstant       = "request.yaml"
)

type applicationExecution struct {
	standardOutput string
	standardError  string
	err            error
}

func executeApplication(testInstance *testing.T, standardInput string, arguments ...string) applicationExecution {
	testInstance.Helper()
	application := NewApplication()

	var standardOutput, standardError bytes.Buffer
	application.rootCommand.SetArgs(append([]string{"--" + logLevelFlagNameConstant, testQuietLogLevelConstant}, arguments...))
	application.rootCommand.SetIn(strings.NewReader(standardInput))
	application.rootCommand.SetOut(&standardOutput)
	application.rootCommand.SetErr(&standardError)

	executionError := application.Execute()
	return applicationExecution{
		standardOutput: standardOutput.String(),
		standardError:  standardError.String(),
		err:            executionError,
	}
}

func skipWithoutPosixTools(testInstance *testing.T) {
	testInstance.Helper()
	if runtime.GOOS == "windows" {
		testInstance.Skip("requires POSIX command-line tools")
	}
}

func TestRunCommandTextOutput(testInstance *testing.T) {
	skipWithoutPosixTools(testInstance)

	testCases := []struct {
		name             string
		arguments        []string
		expectedStdout   string
		expectedStderr   string
		expectedExitCode int
	}{
		{
			name:           "child_output_forwarded",
			arguments:      []string{"run", "echo", "hello", "world"},
			expectedStdout: "hello world\n",
		},
		{
			name:           "child_flags_not_parsed",
			arguments:      []string{"run", "sh", "-c", "echo out; echo err 1>&2"},
			expectedStdout: "out\n",
			expectedStderr: "err\n",
		},
		{
			name:           "double_dash_separator",
			arguments:      []string{"run", "--", "echo", "--output"},
			expectedStdout: "--output\n",
		},
		{
			name:             "exit_code_propagated",
			arguments:        []string{"run", "sh", "-c", "exit 3"},
			expectedExitCode: 3,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			execution := executeApplication(testInstance, "", testCase.arguments...)

			require.Equal(testInstance, testCase.expectedStdout, execution.standardOutput)
			require.Equal(testInstance, testCase.expectedStderr, execution.standardError)
			if testCase.expectedExitCode == 0 {
				require.NoError(testInstance, execution.err)
				return
			}
			require.Equal(testInstance, ExitCodeError{Code: testCase.expectedExitCode}, execution.err)
		})
	}
}

func TestRunCommandStructuredOutput(testInstance *testing.T) {
	skipWithoutPosixTools(testInstance)

	jsonExecution := executeApplication(testInstance, "", "run", "--output", "json", "echo", "structured")
	require.NoError(testInstance, jsonExecution.err)
	var jsonDocument map[string]any
	require.NoError(testInstance, json.Unmarshal([]byte(jsonExecution.standardOutput), &jsonDocument))
	require.Equal(testInstance, "structured\n", jsonDocument["stdout"])
	require.Equal(testInstance, float64(0), jsonDocument["exitCode"])
	require.NotEmpty(testInstance, jsonDocument["runId"])
	require.Contains(testInstance, jsonDocument["command"], "echo structured")

	yamlExecution := executeApplication(testInstance, "", "run", "--output", "yaml", "sh", "-c", "echo failing 1>&2; exit 2")
	require.Equal(testInstance, ExitCodeError{Code: 2}, yamlExecution.err)
	var yamlDocument map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(yamlExecution.standardOutput), &yamlDocument))
	require.Equal(testInstance, "failing\n", yamlDocument["stderr"])
	require.Equal(testInstance, 2, yamlDocument["exit_code"])
	require.Equal(testInstance, false, yamlDocument["stopped"])
}

func TestRunCommandRejectsInvalidRequests(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expectArg bool
	}{
		{name: "missing_binary", arguments: []string{"run"}, expectArg: true},
		{name: "blank_binary", arguments: []string{"run", "  "}, expectArg: true},
		{name: "unknown_output_format", arguments: []string{"run", "--output", "xml", "echo"}},
		{name: "missing_request_file", arguments: []string{"run", "--request", filepath.Join(os.TempDir(), "binrunner-missing-request.yaml")}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			execution := executeApplication(testInstance, "", testCase.arguments...)

			require.Error(testInstance, execution.err)
			if testCase.expectArg {
				require.ErrorIs(testInstance, execution.err, execshell.ErrBinaryNameRequired)
			}
		})
	}
}

func TestRunCommandReadsRequestDocument(testInstance *testing.T) {
	skipWithoutPosixTools(testInstance)
	scriptDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.WriteFile(filepath.Join(scriptDirectory, testScriptNameConstant), []byte(testScriptContentConstant), 0o644))

	requestPath := filepath.Join(testInstance.TempDir(), testRequestFileNameConstant)
	requestContent := fmt.Sprintf("path: %s\nbinary: %s\nargs:\n  - operator\n", scriptDirectory, testScriptNameConstant)
	require.NoError(testInstance, os.WriteFile(requestPath, []byte(requestContent), 0o600))

	execution := executeApplication(testInstance, "", "run", "--request", requestPath)
	require.NoError(testInstance, execution.err)
	require.Equal(testInstance, "greetings operator\n", execution.standardOutput)

	overriddenExecution := executeApplication(testInstance, "", "run", "--request", requestPath, testScriptNameConstant, "overridden")
	require.NoError(testInstance, overriddenExecution.err)
	require.Equal(testInstance, "greetings overridden\n", overriddenExecution.standardOutput)

	invalidRequestPath := filepath.Join(testInstance.TempDir(), testRequestFileNameConstant)
	require.NoError(testInstance, os.WriteFile(invalidRequestPath, []byte("binary: echo\nunexpected: true\n"), 0o600))
	invalidExecution := executeApplication(testInstance, "", "run", "--request", invalidRequestPath)
	require.Error(testInstance, invalidExecution.err)
}

func TestResolveCommandUsesConfiguredSearchDirectories(testInstance *testing.T) {
	skipWithoutPosixTools(testInstance)
	searchDirectory := testInstance.TempDir()
	scriptPath := filepath.Join(searchDirectory, testScriptNameConstant)
	require.NoError(testInstance, os.WriteFile(scriptPath, []byte(testScriptContentConstant), 0o755))

	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	configurationContent := fmt.Sprintf("runner:\n  search_directories:\n    - %s\n", searchDirectory)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(configurationContent), 0o600))

	testCases := []struct {
		name         string
		arguments    []string
		expectedPath string
	}{
		{
			name:         "configured_directory_match",
			arguments:    []string{"--config", configurationPath, "resolve", testScriptNameConstant},
			expectedPath: scriptPath,
		},
		{
			name:         "unmatched_name_returned_bare",
			arguments:    []string{"--config", configurationPath, "resolve", "binrunner-unknown-tool"},
			expectedPath: "binrunner-unknown-tool",
		},
		{
			name:         "path_hint_wins",
			arguments:    []string{"--config", configurationPath, "resolve", "--path", "/data/local/tmp", testScriptNameConstant},
			expectedPath: filepath.Join("/data/local/tmp", testScriptNameConstant),
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			execution := executeApplication(testInstance, "", testCase.arguments...)

			require.NoError(testInstance, execution.err)
			require.Equal(testInstance, testCase.expectedPath+"\n", execution.standardOutput)
		})
	}
}

func TestRunCommandHonorsEnvironmentSearchDirectories(testInstance *testing.T) {
	skipWithoutPosixTools(testInstance)
	searchDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.WriteFile(filepath.Join(searchDirectory, testScriptNameConstant), []byte(testScriptContentConstant), 0o755))
	testInstance.Setenv(environmentPrefixConstant+"_RUNNER_SEARCH_DIRECTORIES", searchDirectory)

	execution := executeApplication(testInstance, "", "run", testScriptNameConstant, "environment")

	require.NoError(testInstance, execution.err)
	require.Equal(testInstance, "greetings environment\n", execution.standardOutput)
}

func TestServeCommandAnswersRequests(testInstance *testing.T) {
	skipWithoutPosixTools(testInstance)
	requests := strings.Join([]string{
		`{"id":1,"method":"runBinary","arguments":{"binaryName":"echo","args":["bridged"]}}`,
		`{"id":2,"method":"runBinary","arguments":{"binaryName":""}}`,
	}, "\n") + "\n"

	execution := executeApplication(testInstance, requests, "serve")
	require.NoError(testInstance, execution.err)

	responses := map[string]map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(execution.standardOutput), "\n") {
		var response map[string]any
		require.NoError(testInstance, json.Unmarshal([]byte(line), &response))
		responses[fmt.Sprint(response["id"])] = response
	}

	require.Len(testInstance, responses, 2)
	require.Equal(testInstance, "bridged\n", responses["1"]["result"].(map[string]any)["stdout"])
	require.Equal(testInstance, "ARG_ERROR", responses["2"]["error"].(map[string]any)["code"])
	require.Equal(testInstance, "binaryName is required", responses["2"]["error"].(map[string]any)["message"])
}

func TestApplicationRejectsInvalidLogSettings(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "invalid_log_level", arguments: []string{"--log-level", "verbose", "resolve", "ls"}},
		{name: "invalid_log_format", arguments: []string{"--log-format", "xml", "resolve", "ls"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application := NewApplication()
			application.rootCommand.SetArgs(testCase.arguments)
			application.rootCommand.SetOut(&bytes.Buffer{})
			application.rootCommand.SetErr(&bytes.Buffer{})

			require.Error(testInstance, application.Execute())
		})
	}
}

func TestApplicationVersionFlag(testInstance *testing.T) {
	execution := executeApplication(testInstance, "", "--version")

	require.NoError(testInstance, execution.err)
	require.Contains(testInstance, execution.standardOutput, applicationNameConstant+" version ")
}
