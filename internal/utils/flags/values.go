// Package flags provides helpers for reading and declaring Cobra command flags.
package flags

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	boolFlagParseErrorTemplate  = "unable to parse flag %q: %w"
	choiceUsageTemplate         = "%s (one of: %s; default %s)"
	choiceUsageSeparator        = ", "
	unsupportedChoiceTemplate   = "unsupported value %q (expected one of: %s)"
	choiceValueTypeNameConstant = "string"
)

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

// BoolFlag returns the flag value and whether it was set explicitly.
func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return false, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetBool(name)
	if err == nil {
		return value, flag.Changed, nil
	}

	if flag.Value == nil {
		return false, false, err
	}

	parsedValue, parseError := strconv.ParseBool(strings.TrimSpace(flag.Value.String()))
	if parseError != nil {
		return false, false, fmt.Errorf(boolFlagParseErrorTemplate, name, parseError)
	}

	return parsedValue, flag.Changed, nil
}

// StringFlag returns the flag value and whether it was set explicitly.
func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, err := flagSet.GetString(name)
	if err != nil {
		return "", false, err
	}
	return value, flag.Changed, nil
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}

	return nil, nil
}

// FormatChoiceUsage appends the accepted values and the default to a flag usage string.
func FormatChoiceUsage(defaultValue string, choices []string, usage string) string {
	return fmt.Sprintf(choiceUsageTemplate, strings.TrimSpace(usage), strings.Join(choices, choiceUsageSeparator), defaultValue)
}

// ChoiceValue is a pflag.Value restricted to a fixed set of case-insensitive choices.
type ChoiceValue struct {
	value   string
	choices []string
}

// NewChoiceValue constructs a ChoiceValue holding defaultValue.
func NewChoiceValue(defaultValue string, choices []string) *ChoiceValue {
	return &ChoiceValue{value: defaultValue, choices: append([]string{}, choices...)}
}

// String returns the current value.
func (choice *ChoiceValue) String() string {
	if choice == nil {
		return ""
	}
	return choice.value
}

// Set validates and stores a new value.
func (choice *ChoiceValue) Set(raw string) error {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range choice.choices {
		if normalized == strings.ToLower(candidate) {
			choice.value = candidate
			return nil
		}
	}
	return fmt.Errorf(unsupportedChoiceTemplate, raw, strings.Join(choice.choices, choiceUsageSeparator))
}

// Type reports the pflag value type.
func (choice *ChoiceValue) Type() string {
	return choiceValueTypeNameConstant
}

// AddChoiceFlag declares a validated choice flag on flagSet and returns its value holder.
func AddChoiceFlag(flagSet *pflag.FlagSet, name string, defaultValue string, choices []string, usage string) *ChoiceValue {
	choiceValue := NewChoiceValue(defaultValue, choices)
	if flagSet == nil {
		return choiceValue
	}
	flagSet.Var(choiceValue, name, FormatChoiceUsage(defaultValue, choices, usage))
	return choiceValue
}
