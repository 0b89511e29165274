package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Action names a condition may trigger when it fails.
const (
	// ActionClearField blanks the field for the rest of the pass.
	ActionClearField = "CLEAR_FORMFIELD"

	// ActionUpdateValue replaces the field's value with the action value.
	ActionUpdateValue = "UPDATE_VALUE"
)

// IsKnownAction reports whether the executor understands an action name.
func IsKnownAction(action string) bool {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case ActionClearField, ActionUpdateValue:
		return true
	}
	return false
}

// ActionExecutor applies condition actions to the field context of a pass.
type ActionExecutor interface {
	// Execute applies action to fieldID and returns the result.
	Execute(ctx context.Context, fieldID, action string, actionValue any, fields *Context) (*ActionResult, error)
}

// ActionResult represents the result of executing an action.
type ActionResult struct {
	// ActionType is the action that was executed.
	ActionType string

	// FieldID is the field the action was applied to.
	FieldID string

	// Success indicates whether the action was applied.
	Success bool

	// Error contains any error that occurred during execution.
	Error error

	// Details contains action-specific details such as the previous value.
	Details map[string]any
}

// DefaultExecutor is the default implementation of ActionExecutor.
type DefaultExecutor struct {
	logger *slog.Logger
}

// NewDefaultExecutor creates a new default action executor.
func NewDefaultExecutor(logger *slog.Logger) *DefaultExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultExecutor{
		logger: logger,
	}
}

// Execute applies an action. Unknown actions produce a failed result with an ActionError.
func (e *DefaultExecutor) Execute(ctx context.Context, fieldID, action string, actionValue any, fields *Context) (*ActionResult, error) {
	if fields == nil {
		return nil, fmt.Errorf("field context cannot be nil")
	}

	e.logger.Debug("executing action",
		"action", action,
		"field_id", fieldID,
	)

	previous := fields.GetFieldValue(fieldID)

	switch strings.ToUpper(strings.TrimSpace(action)) {
	case ActionClearField:
		fields.ClearValue(fieldID)
		return &ActionResult{
			ActionType: ActionClearField,
			FieldID:    fieldID,
			Success:    true,
			Details: map[string]any{
				"previousValue": previous,
			},
		}, nil

	case ActionUpdateValue:
		fields.SetValue(fieldID, actionValue)
		return &ActionResult{
			ActionType: ActionUpdateValue,
			FieldID:    fieldID,
			Success:    true,
			Details: map[string]any{
				"previousValue": previous,
				"value":         actionValue,
			},
		}, nil

	default:
		err := &ActionError{
			FieldID: fieldID,
			Action:  action,
			Cause:   fmt.Errorf("unknown action type: %q", action),
		}
		return &ActionResult{
			ActionType: action,
			FieldID:    fieldID,
			Success:    false,
			Error:      err,
		}, nil
	}
}
