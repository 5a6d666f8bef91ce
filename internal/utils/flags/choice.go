// Package flags provides pflag values and usage helpers shared by binrunner commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderPrefix     = "<"
	choicePlaceholderSuffix     = ">"
	choiceSeparatorLiteral      = "|"
	choiceUsageEmptyTemplate    = "`%s`"
	choiceUsageFullTemplate     = "`%s` %s"
	choiceTypeNameConstant      = "choice"
	choiceInvalidValueTemplate  = "invalid value %q: must be one of %s"
	choiceListSeparatorConstant = ", "
)

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := choicePlaceholderPrefix + strings.Join(highlightDefaultChoice(defaultChoice, choices), choiceSeparatorLiteral) + choicePlaceholderSuffix
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplate, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplate, placeholder, description)
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	highlighted := make([]string, 0, len(choices))
	for _, choice := range normalizeChoices(choices) {
		if choice == normalizedDefault {
			choice = strings.ToUpper(choice)
		}
		highlighted = append(highlighted, choice)
	}
	return highlighted
}

func normalizeChoices(choices []string) []string {
	normalized := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		candidate := strings.ToLower(strings.TrimSpace(choice))
		if len(candidate) == 0 {
			continue
		}
		if _, exists := seen[candidate]; exists {
			continue
		}
		seen[candidate] = struct{}{}
		normalized = append(normalized, candidate)
	}
	return normalized
}

// ChoiceValue is a pflag.Value restricted to a fixed, case-insensitive set of options.
type ChoiceValue struct {
	target  *string
	choices []string
}

// AddChoiceFlag registers a flag on flagSet that only accepts one of choices.
// The stored value is always lower case.
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, defaultChoice string, choices []string, description string) {
	if flagSet == nil || target == nil || len(name) == 0 {
		return
	}
	*target = strings.ToLower(strings.TrimSpace(defaultChoice))
	flagSet.Var(&ChoiceValue{target: target, choices: normalizeChoices(choices)}, name, FormatChoiceUsage(defaultChoice, choices, description))
}

// String returns the current selection.
func (value *ChoiceValue) String() string {
	if value == nil || value.target == nil {
		return ""
	}
	return *value.target
}

// Set validates and stores a new selection.
func (value *ChoiceValue) Set(rawValue string) error {
	candidate := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range value.choices {
		if choice == candidate {
			*value.target = candidate
			return nil
		}
	}
	return fmt.Errorf(choiceInvalidValueTemplate, rawValue, strings.Join(value.choices, choiceListSeparatorConstant))
}

// Type names the flag value kind in generated help.
func (value *ChoiceValue) Type() string {
	return choiceTypeNameConstant
}
