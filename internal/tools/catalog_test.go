package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

func violatedFields(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	sv, ok := AsSchemaViolation(err)
	require.True(t, ok, "expected schema violation, got %v", err)
	out := map[string]string{}
	for _, f := range sv.Fields {
		out[f.Field] = f.Reason
	}
	return out
}

func TestValidateUnknownTool(t *testing.T) {
	_, err := NewCatalog().Validate("drop_tables", json.RawMessage(`{}`))
	assert.Equal(t, pkgerrors.CodeUnknownTool, pkgerrors.CodeOf(err))
}

func TestValidateCreateOrderNormalises(t *testing.T) {
	call, err := NewCatalog().Validate("create_order", json.RawMessage(`{"product_name":"  Red Shirt ","quantity":2,"variant":"   "}`))
	require.NoError(t, err)

	args, ok := call.(CreateOrderArgs)
	require.True(t, ok, "got %T", call)
	assert.Equal(t, "Red Shirt", args.ProductName)
	assert.Equal(t, 2, args.Quantity)
	assert.Nil(t, args.Variant)
	assert.Equal(t, ToolCreateOrder, call.Tool())
}

func TestValidateQuantityBounds(t *testing.T) {
	c := NewCatalog()
	for _, raw := range []string{
		`{"product_name":"Mug","quantity":0}`,
		`{"product_name":"Mug","quantity":-3}`,
		`{"product_name":"Mug","quantity":101}`,
	} {
		fields := violatedFields(t, func() error { _, err := c.Validate("create_order", json.RawMessage(raw)); return err }())
		assert.Contains(t, fields, "quantity", raw)
	}

	_, err := c.Validate("create_order", json.RawMessage(`{"product_name":"Mug","quantity":100}`))
	assert.NoError(t, err)
}

func TestValidateReportsEveryFailingField(t *testing.T) {
	_, err := NewCatalog().Validate("add_to_cart", json.RawMessage(`{"product_name":"","quantity":500}`))
	fields := violatedFields(t, err)
	assert.Equal(t, "is required", fields["product_name"])
	assert.Equal(t, "must be at most 100", fields["quantity"])
}

func TestValidateDecodeFailures(t *testing.T) {
	c := NewCatalog()

	_, err := c.Validate("create_order", json.RawMessage(`{"product_name":"Mug","quantity":"two"}`))
	assert.Equal(t, "must be of type integer", violatedFields(t, err)["quantity"])

	_, err = c.Validate("create_order", json.RawMessage(`{"product_name":"Mug","quantity":1,"discount":50}`))
	assert.Contains(t, violatedFields(t, err), "discount")

	_, err = c.Validate("create_order", json.RawMessage(`not json`))
	assert.Contains(t, violatedFields(t, err), "arguments")
}

func TestValidateDecodeFailureKeepsOtherViolations(t *testing.T) {
	c := NewCatalog()

	_, err := c.Validate("create_order", json.RawMessage(`{"quantity":5,"colour":"red"}`))
	fields := violatedFields(t, err)
	assert.Equal(t, "is required", fields["product_name"])
	assert.Equal(t, "is not a recognised argument", fields["colour"])
	assert.NotContains(t, fields, "quantity")

	_, err = c.Validate("create_order", json.RawMessage(`{"quantity":"two"}`))
	fields = violatedFields(t, err)
	assert.Len(t, fields, 2)
	assert.Equal(t, "must be of type integer", fields["quantity"])
	assert.Equal(t, "is required", fields["product_name"])

	_, err = c.Validate("show_product_image", json.RawMessage(`{"names":"Mug","mode":"carousel"}`))
	fields = violatedFields(t, err)
	assert.Equal(t, "must be of type array", fields["names"])
	assert.Contains(t, fields, "mode")
}

func TestValidateEmptyArgumentsForParameterlessTools(t *testing.T) {
	c := NewCatalog()
	for _, raw := range []string{``, `null`, `{}`} {
		call, err := c.Validate("view_cart", json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.IsType(t, ViewCartArgs{}, call)
	}
}

func TestValidateContactInfo(t *testing.T) {
	c := NewCatalog()

	_, err := c.Validate("collect_contact_info", json.RawMessage(`{}`))
	assert.Contains(t, violatedFields(t, err), "name")

	_, err = c.Validate("collect_contact_info", json.RawMessage(`{"phone":"call me"}`))
	assert.Contains(t, violatedFields(t, err), "phone")

	call, err := c.Validate("collect_contact_info", json.RawMessage(`{"phone":"+591 (7) 123-4567"}`))
	require.NoError(t, err)
	args := call.(CollectContactInfoArgs)
	require.NotNil(t, args.Phone)
	assert.Equal(t, "+59171234567", *args.Phone)
}

func TestValidatePreferenceKeyNormalised(t *testing.T) {
	call, err := NewCatalog().Validate("remember_preference", json.RawMessage(`{"key":" Favourite  Color ","value":" blue "}`))
	require.NoError(t, err)
	args := call.(RememberPreferenceArgs)
	assert.Equal(t, "favourite_color", args.Key)
	assert.Equal(t, "blue", args.Value)
}

func TestValidateShowProductImage(t *testing.T) {
	c := NewCatalog()

	call, err := c.Validate("show_product_image", json.RawMessage(`{"names":["Mug"]}`))
	require.NoError(t, err)
	assert.Equal(t, ImageModeAll, call.(ShowProductImageArgs).Mode)

	_, err = c.Validate("show_product_image", json.RawMessage(`{"names":["Mug"],"mode":"carousel"}`))
	assert.Contains(t, violatedFields(t, err), "mode")

	_, err = c.Validate("show_product_image", json.RawMessage(`{"names":[]}`))
	assert.Contains(t, violatedFields(t, err), "names")
}

func TestValidateCancelOrderID(t *testing.T) {
	_, err := NewCatalog().Validate("cancel_order", json.RawMessage(`{"order_id":"abc"}`))
	assert.Equal(t, "must be a valid order id", violatedFields(t, err)["order_id"])
}

func TestDefinitionsAreValidSchemas(t *testing.T) {
	defs := NewCatalog().Definitions()
	require.Len(t, defs, 13)
	seen := map[string]bool{}
	for _, def := range defs {
		assert.False(t, seen[def.Name])
		seen[def.Name] = true
		var schema map[string]any
		require.NoError(t, json.Unmarshal(def.Parameters, &schema), def.Name)
		assert.Equal(t, "object", schema["type"])
	}
}
