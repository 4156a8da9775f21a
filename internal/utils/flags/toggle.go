package flags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleValueTypeConstant     = "bool"
	toggleParseErrorTemplate    = "invalid toggle value %q"
	toggleYesChoiceConstant     = "yes"
	toggleNoChoiceConstant      = "no"
	toggleImplicitValueConstant = "true"
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"on":    true,
	"1":     true,
	"t":     true,
	"y":     true,
	"false": false,
	"no":    false,
	"off":   false,
	"0":     false,
	"f":     false,
	"n":     false,
}

// AddToggleFlag registers a boolean toggle flag that accepts yes/no style values.
// A bare flag sets true; other values must be attached with '=' so a following
// positional argument is never consumed.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	if target == nil {
		target = new(bool)
	}
	*target = defaultValue

	flag := flagSet.VarPF(toggleValue{target: target}, name, shorthand, toggleUsage(usage, defaultValue))
	flag.NoOptDefVal = toggleImplicitValueConstant
}

// ParseToggleValue interprets yes/no, on/off, true/false, y/n, t/f and 1/0. An empty value means true.
func ParseToggleValue(rawValue string) (bool, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalizedValue) == 0 {
		return true, nil
	}
	if parsedValue, known := toggleLiterals[normalizedValue]; known {
		return parsedValue, nil
	}
	return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
}

func toggleUsage(description string, defaultValue bool) string {
	defaultChoice := toggleNoChoiceConstant
	if defaultValue {
		defaultChoice = toggleYesChoiceConstant
	}
	return FormatChoiceUsage(defaultChoice, []string{toggleYesChoiceConstant, toggleNoChoiceConstant}, strings.TrimSpace(description))
}

type toggleValue struct {
	target *bool
}

func (value toggleValue) Set(rawValue string) error {
	parsedValue, parseError := ParseToggleValue(rawValue)
	if parseError != nil {
		return parseError
	}
	*value.target = parsedValue
	return nil
}

func (value toggleValue) String() string {
	if value.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.target)
}

func (value toggleValue) Type() string {
	return toggleValueTypeConstant
}
