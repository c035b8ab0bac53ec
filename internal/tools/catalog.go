package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/llm"
)

// Definition describes one tool: its schema for the model and the typed
// payload its arguments decode into.
type Definition struct {
	Name        Name
	Description string
	Parameters  json.RawMessage
	// ReadOnly tools never mutate state and skip the per-customer lock.
	ReadOnly bool
	newArgs  func() Call
}

// Catalog maps tool names to schemas and validates model arguments. It has no side effects.
type Catalog struct {
	defs     map[Name]Definition
	order    []Name
	validate *validator.Validate
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,19}$`)

// NewCatalog returns the catalog of every commerce tool.
func NewCatalog() *Catalog {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	c := &Catalog{defs: map[Name]Definition{}, validate: v}
	for _, def := range definitions() {
		c.defs[def.Name] = def
		c.order = append(c.order, def.Name)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	def, ok := c.defs[Name(name)]
	return def, ok
}

// Definitions lists every tool in the form the model expects.
func (c *Catalog) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(c.order))
	for _, name := range c.order {
		def := c.defs[name]
		out = append(out, llm.ToolDefinition{
			Name:        string(def.Name),
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return out
}

// Validate decodes raw into the tool's typed arguments, normalises them and
// checks every constraint. It returns UNKNOWN_TOOL for unknown names and a
// VALIDATION_ERROR wrapping *SchemaViolation listing every failing field.
func (c *Catalog) Validate(name string, raw json.RawMessage) (Call, error) {
	def, ok := c.defs[Name(name)]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownTool, fmt.Sprintf("unknown tool %q", name)).
			WithDetails(map[string]any{"tool": name})
	}

	call := def.newArgs()
	fields, ok := decodeFields(raw, call)
	if !ok {
		return nil, violation(def.Name, fields)
	}
	undecoded := make(map[string]bool, len(fields))
	for _, f := range fields {
		undecoded[f.Field] = true
	}
	if n, ok := call.(normalizer); ok {
		n.normalize()
	}

	if err := c.validate.Struct(call); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validate tool arguments")
		}
		for _, fe := range verrs {
			path := fieldPath(fe)
			if undecoded[topLevel(path)] {
				continue
			}
			fields = append(fields, FieldViolation{Field: path, Reason: reason(fe)})
		}
	}
	if ch, ok := call.(checker); ok {
		fields = append(fields, ch.check()...)
	}
	if len(fields) > 0 {
		return nil, violation(def.Name, fields)
	}

	return deref(call), nil
}

// deref returns the value form of the pointer the arguments were decoded into
// so handlers switch on value types.
func deref(call Call) Call {
	v := reflect.ValueOf(call)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		if c, ok := v.Elem().Interface().(Call); ok {
			return c
		}
	}
	return call
}

// decodeFields decodes every argument on its own so a bad value or an unknown
// key does not hide the other failing fields. Arguments that fail to decode
// keep their zero value and are reported once. ok is false when raw is not a
// JSON object at all.
func decodeFields(raw json.RawMessage, dest any) (violations []FieldViolation, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return []FieldViolation{{Field: "arguments", Reason: "must be a valid JSON object"}}, false
	}

	target := reflect.ValueOf(dest).Elem()
	index := argumentIndex(target.Type())
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		i, known := index[key]
		if !known {
			violations = append(violations, FieldViolation{Field: key, Reason: "is not a recognised argument"})
			continue
		}
		field := target.Field(i)
		if err := json.Unmarshal(obj[key], field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			violations = append(violations, FieldViolation{Field: key, Reason: fmt.Sprintf("must be of type %s", jsonType(field.Type()))})
		}
	}
	return violations, true
}

// argumentIndex maps json argument names to struct field indexes.
func argumentIndex(t reflect.Type) map[string]int {
	index := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		index[name] = i
	}
	return index
}

func topLevel(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

func jsonType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Bool:
		return "boolean"
	case reflect.Struct, reflect.Map:
		return "object"
	}
	return t.String()
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isNumeric(fe.Kind()) {
			return fmt.Sprintf("must be at least %s", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if isNumeric(fe.Kind()) {
			return fmt.Sprintf("must be at most %s", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid":
		return "must be a valid order id"
	case "phone":
		return "must be a phone number of 6 to 19 digits"
	}
	return "is invalid"
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
