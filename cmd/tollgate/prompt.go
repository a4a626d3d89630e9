package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
)

// errCancelled is returned when the user declines a prompt.
var errCancelled = errors.New("cancelled")

// confirm asks a yes/no question. Declining returns errCancelled.
func confirm(label string) error {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		return handlePromptError(err)
	}
	return nil
}

// promptValue asks for a value. Secrets are masked.
func promptValue(label string, secret bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if input == "" {
				return fmt.Errorf("%s is required", label)
			}
			return nil
		},
	}
	if secret {
		prompt.Mask = '*'
	}

	value, err := prompt.Run()
	if err != nil {
		return "", handlePromptError(err)
	}
	return value, nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		return errCancelled
	}
	return err
}
