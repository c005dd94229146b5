package cli

import (
	"errors"
	"fmt"

	"mercator-hq/richhistory/pkg/richhistory"
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %s", e.Command, UserMessage(e.Err))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// UserMessage renders store errors for people rather than logs.
func UserMessage(err error) string {
	var dup *richhistory.DuplicateError
	var nf *richhistory.NotFoundError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &dup):
		return fmt.Sprintf("an identical query is already in the history (id %s)", dup.ExistingID)
	case errors.As(err, &nf):
		return fmt.Sprintf("no history entry with id %s", nf.ID)
	case errors.Is(err, richhistory.ErrStorageFull):
		return "history storage is full; delete or unstar old entries and try again"
	default:
		return err.Error()
	}
}
