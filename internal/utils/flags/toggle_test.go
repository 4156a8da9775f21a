package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestAddToggleFlagParsesValues(testInstance *testing.T) {
	testCases := []struct {
		name                string
		arguments           []string
		defaultValue        bool
		expectedValue       bool
		expectedChanged     bool
		expectedPositionals []string
	}{
		{name: "DefaultFalse", arguments: []string{}, expectedValue: false, expectedChanged: false},
		{name: "DefaultTrue", arguments: []string{}, defaultValue: true, expectedValue: true, expectedChanged: false},
		{name: "ImplicitTrue", arguments: []string{"--toggle"}, expectedValue: true, expectedChanged: true},
		{name: "ExplicitYes", arguments: []string{"--toggle=yes"}, expectedValue: true, expectedChanged: true},
		{name: "ExplicitTrueUppercase", arguments: []string{"--toggle=TRUE"}, expectedValue: true, expectedChanged: true},
		{name: "ExplicitNo", arguments: []string{"--toggle=no"}, defaultValue: true, expectedValue: false, expectedChanged: true},
		{name: "ExplicitOff", arguments: []string{"--toggle=off"}, defaultValue: true, expectedValue: false, expectedChanged: true},
		{name: "ShorthandNo", arguments: []string{"-t=no"}, defaultValue: true, expectedValue: false, expectedChanged: true},
		{
			name:                "BareToggleKeepsPositional",
			arguments:           []string{"--toggle", "backup.tar"},
			expectedValue:       true,
			expectedChanged:     true,
			expectedPositionals: []string{"backup.tar"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := &cobra.Command{}

			var toggleValue bool
			AddToggleFlag(command.Flags(), &toggleValue, "toggle", "t", testCase.defaultValue, "Toggle flag")

			parseError := command.ParseFlags(testCase.arguments)
			require.NoError(testInstance, parseError)

			require.Equal(testInstance, testCase.expectedValue, toggleValue)

			flag := command.Flags().Lookup("toggle")
			require.NotNil(testInstance, flag)
			require.Equal(testInstance, testCase.expectedChanged, flag.Changed)

			if len(testCase.expectedPositionals) > 0 {
				require.Equal(testInstance, testCase.expectedPositionals, command.Flags().Args())
			}
		})
	}
}

func TestAddToggleFlagRejectsInvalidValues(testInstance *testing.T) {
	command := &cobra.Command{}

	var toggleValue bool
	AddToggleFlag(command.Flags(), &toggleValue, "toggle", "", false, "Toggle flag")

	parseError := command.ParseFlags([]string{"--toggle=maybe"})
	require.Error(testInstance, parseError)

	require.Equal(testInstance, false, toggleValue)

	flag := command.Flags().Lookup("toggle")
	require.NotNil(testInstance, flag)
	require.False(testInstance, flag.Changed)
}

func TestAddToggleFlagUsageHighlightsDefault(testInstance *testing.T) {
	command := &cobra.Command{}

	var enabled bool
	var disabled bool
	AddToggleFlag(command.Flags(), &enabled, "hooks", "", true, "Capture hooks.")
	AddToggleFlag(command.Flags(), &disabled, "ignored", "", false, "Capture ignored files.")

	require.Equal(testInstance, "`<YES|no>` Capture hooks.", command.Flags().Lookup("hooks").Usage)
	require.Equal(testInstance, "`<yes|NO>` Capture ignored files.", command.Flags().Lookup("ignored").Usage)
}

func TestParseToggleValue(testInstance *testing.T) {
	testCases := []struct {
		rawValue      string
		expectedValue bool
		expectError   bool
	}{
		{rawValue: "", expectedValue: true},
		{rawValue: " Yes ", expectedValue: true},
		{rawValue: "on", expectedValue: true},
		{rawValue: "1", expectedValue: true},
		{rawValue: "N", expectedValue: false},
		{rawValue: "false", expectedValue: false},
		{rawValue: "sometimes", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.rawValue, func(testInstance *testing.T) {
			parsedValue, parseError := ParseToggleValue(testCase.rawValue)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedValue, parsedValue)
		})
	}
}
