package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderTemplateConstant = "<%s>"
	choiceSeparatorConstant           = "|"
	choiceUsageEmptyTemplateConstant  = "`%s`"
	choiceUsageFullTemplateConstant   = "`%s` %s"
	choiceValueTypeConstant           = "string"
	choiceRejectedTemplateConstant    = "unsupported value %q (expected one of %s)"
)

// FormatChoiceUsage builds a usage string whose placeholder lists the choices with the default capitalized.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := fmt.Sprintf(choicePlaceholderTemplateConstant, strings.Join(highlightDefaultChoice(defaultChoice, choices), choiceSeparatorConstant))
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplateConstant, placeholder, description)
}

// AddChoiceFlag registers a string flag restricted to choices. Values are matched case-insensitively
// and stored in their lower-case form. The target keeps its current value until the flag is set, so an
// empty target means "not given on the command line".
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, displayedDefault string, choices []string, description string) {
	if flagSet == nil || target == nil || len(name) == 0 {
		return
	}
	flagSet.Var(&choiceValue{target: target, choices: uniqueChoices(choices)}, name, FormatChoiceUsage(displayedDefault, choices, description))
}

type choiceValue struct {
	target  *string
	choices []string
}

func (value *choiceValue) Set(rawValue string) error {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range value.choices {
		if choice == normalizedValue {
			*value.target = normalizedValue
			return nil
		}
	}
	return fmt.Errorf(choiceRejectedTemplateConstant, rawValue, strings.Join(value.choices, ", "))
}

func (value *choiceValue) String() string {
	if value == nil || value.target == nil {
		return ""
	}
	return *value.target
}

func (value *choiceValue) Type() string {
	return choiceValueTypeConstant
}

func uniqueChoices(choices []string) []string {
	unique := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		normalizedChoice := strings.ToLower(strings.TrimSpace(choice))
		if len(normalizedChoice) == 0 {
			continue
		}
		if _, duplicate := seen[normalizedChoice]; duplicate {
			continue
		}
		seen[normalizedChoice] = struct{}{}
		unique = append(unique, normalizedChoice)
	}
	return unique
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	highlighted := uniqueChoices(choices)
	for index, choice := range highlighted {
		if choice == normalizedDefault {
			highlighted[index] = strings.ToUpper(choice)
		}
	}
	return highlighted
}
