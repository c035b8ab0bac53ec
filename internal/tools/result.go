package tools

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// Result is the uniform tool outcome fed back to the model.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

func fail(message string) Result {
	return Result{Success: false, Error: message}
}

// JSON renders the result as the tool message content.
func (r Result) JSON() string {
	out, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"could not encode tool result"}`
	}
	return string(out)
}

const genericFailure = "Something went wrong on our side. Please try again in a moment."

// failureFromError turns a handler error into a model-facing failure. Expected
// business errors keep their message; infrastructure errors become generic.
func failureFromError(err error) (Result, bool) {
	if sv, ok := AsSchemaViolation(err); ok {
		parts := make([]string, 0, len(sv.Fields))
		for _, f := range sv.Fields {
			parts = append(parts, f.Field+" "+f.Reason)
		}
		return Result{Success: false, Error: "Invalid arguments: " + strings.Join(parts, "; "), Data: map[string]any{"fields": sv.Fields}}, true
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		return fail(genericFailure), false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeUnknownTool,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeInsufficientStock,
		pkgerrors.CodeInvalidTransition,
		pkgerrors.CodeConflict:
		return Result{Success: false, Error: typed.Message(), Data: typed.Details()}, true
	}
	return fail(genericFailure), false
}
