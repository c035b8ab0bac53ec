package tools

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// FieldViolation names one failing argument and why.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// SchemaViolation lists every argument that failed validation for a tool.
type SchemaViolation struct {
	Tool   Name
	Fields []FieldViolation
}

func (v *SchemaViolation) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Reason))
	}
	return fmt.Sprintf("invalid arguments for %s: %s", v.Tool, strings.Join(parts, "; "))
}

func violation(tool Name, fields []FieldViolation) error {
	sv := &SchemaViolation{Tool: tool, Fields: fields}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, sv, sv.Error()).WithDetails(fields)
}

// AsSchemaViolation extracts the violation from a Validate error.
func AsSchemaViolation(err error) (*SchemaViolation, bool) {
	var sv *SchemaViolation
	if errors.As(err, &sv) {
		return sv, true
	}
	return nil, false
}
