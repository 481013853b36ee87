package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/huh"
)

// ConfirmTyped asks the operator to type keyword before a destructive action
// and reports whether they did. Comparison is case-insensitive; anything else
// counts as a refusal, not an error.
func ConfirmTyped(ctx context.Context, title, description, keyword string) (bool, error) {
	var answer string

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description(description).
				Placeholder(keyword).
				Value(&answer),
		),
	).RunWithContext(ctx)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(strings.TrimSpace(answer), keyword), nil
}

// Confirm presents a yes/no prompt and reports the choice.
func Confirm(ctx context.Context, title, description string) (bool, error) {
	var proceed bool

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&proceed),
		),
	).RunWithContext(ctx)
	if err != nil {
		return false, err
	}

	return proceed, nil
}
