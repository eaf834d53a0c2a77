package errors

import (
	"errors"
	"fmt"
)

// ConfigNotFoundError is returned by ledger and store operations that target
// an unknown config, by id or by client email. No partial mutation happens in
// that case.
type ConfigNotFoundError struct {
	ConfigID uint
	Email    string
}

func (e *ConfigNotFoundError) Error() string {
	if e.Email != "" {
		return fmt.Sprintf("config not found: %s", e.Email)
	}
	return fmt.Sprintf("config not found: %d", e.ConfigID)
}

// OwnerNotFoundError is returned when an owner lookup misses.
type OwnerNotFoundError struct {
	OwnerID int64
}

func (e *OwnerNotFoundError) Error() string {
	return fmt.Sprintf("owner not found: %d", e.OwnerID)
}

// IsNotFound reports whether err is a config or owner not-found condition.
func IsNotFound(err error) bool {
	var cnf *ConfigNotFoundError
	var onf *OwnerNotFoundError
	return errors.As(err, &cnf) || errors.As(err, &onf)
}

// ValidationError represents a rejected user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// PanelAPIError represents a failed call to the 3x-ui panel.
type PanelAPIError struct {
	Operation string
	Status    int
	Message   string
}

func (e *PanelAPIError) Error() string {
	return fmt.Sprintf("panel API error during %s (status %d): %s", e.Operation, e.Status, e.Message)
}

// PermissionError represents an action an owner is not allowed to perform.
type PermissionError struct {
	UserID   int64
	Required string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission error for user %d: requires %s access", e.UserID, e.Required)
}

// SetupError represents an invalid application configuration.
type SetupError struct {
	Section string
	Message string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Section, e.Message)
}
