package tools

import "encoding/json"

func definitions() []Definition {
	return []Definition{
		{
			Name:        ToolCreateOrder,
			Description: "Place an order for one product right away. Reserves stock and returns payment details.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"product_name": {"type": "string", "description": "Product name as the customer said it"},
					"quantity": {"type": "integer", "minimum": 1, "maximum": 100},
					"variant": {"type": "string", "description": "Optional variant such as color or size"}
				},
				"required": ["product_name", "quantity"],
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &CreateOrderArgs{} },
		},
		{
			Name:        ToolAddToCart,
			Description: "Add a product to the customer's cart. Does not reserve stock.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"product_name": {"type": "string"},
					"quantity": {"type": "integer", "minimum": 1, "maximum": 100},
					"variant": {"type": "string"}
				},
				"required": ["product_name", "quantity"],
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &AddToCartArgs{} },
		},
		{
			Name:        ToolRemoveFromCart,
			Description: "Remove a product from the cart. Omit quantity to remove the whole line.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"product_name": {"type": "string"},
					"quantity": {"type": "integer", "minimum": 1, "maximum": 100},
					"variant": {"type": "string"}
				},
				"required": ["product_name"],
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &RemoveFromCartArgs{} },
		},
		{
			Name:        ToolViewCart,
			Description: "Show the items in the customer's cart and its total.",
			Parameters:  emptySchema,
			ReadOnly:    true,
			newArgs:     func() Call { return &ViewCartArgs{} },
		},
		{
			Name:        ToolCheckout,
			Description: "Turn the whole cart into an order, reserving stock for every item, and empty the cart.",
			Parameters:  emptySchema,
			newArgs:     func() Call { return &CheckoutArgs{} },
		},
		{
			Name:        ToolCollectContactInfo,
			Description: "Save the customer's name, phone or delivery address.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"phone": {"type": "string"},
					"address": {"type": "string"}
				},
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &CollectContactInfoArgs{} },
		},
		{
			Name:        ToolRequestHumanSupport,
			Description: "Hand the conversation to a human and pause automated replies.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"reason": {"type": "string"}
				},
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &RequestHumanSupportArgs{} },
		},
		{
			Name:        ToolRememberPreference,
			Description: "Remember a customer preference such as size or favourite color.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"key": {"type": "string"},
					"value": {"type": "string"}
				},
				"required": ["key", "value"],
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &RememberPreferenceArgs{} },
		},
		{
			Name:        ToolCancelOrder,
			Description: "Cancel an order that has not been delivered. Defaults to the latest open order.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"order_id": {"type": "string"},
					"reason": {"type": "string"}
				},
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &CancelOrderArgs{} },
		},
		{
			Name:        ToolShowProductImage,
			Description: "Return image links for products by name. Mode single returns only the first matching product, all returns one per matched name.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"names": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 10},
					"mode": {"type": "string", "enum": ["single", "all"]}
				},
				"required": ["names"],
				"additionalProperties": false
			}`),
			ReadOnly: true,
			newArgs:  func() Call { return &ShowProductImageArgs{} },
		},
		{
			Name:        ToolListProducts,
			Description: "List available products, optionally filtered by name.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"query": {"type": "string"},
					"limit": {"type": "integer", "minimum": 1, "maximum": 20}
				},
				"additionalProperties": false
			}`),
			ReadOnly: true,
			newArgs:  func() Call { return &ListProductsArgs{} },
		},
		{
			Name:        ToolCheckOrderStatus,
			Description: "Report the status of an order. Defaults to the latest order.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"order_id": {"type": "string"}
				},
				"additionalProperties": false
			}`),
			ReadOnly: true,
			newArgs:  func() Call { return &CheckOrderStatusArgs{} },
		},
		{
			Name:        ToolCheckPaymentStatus,
			Description: "Check with the payment provider whether an order has been paid.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"order_id": {"type": "string"}
				},
				"additionalProperties": false
			}`),
			newArgs: func() Call { return &CheckPaymentStatusArgs{} },
		},
	}
}

var emptySchema = schema(`{"type": "object", "properties": {}, "additionalProperties": false}`)

// schema compacts a JSON schema literal, panicking on malformed input at init.
func schema(raw string) json.RawMessage {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		panic("tools: invalid schema: " + err.Error())
	}
	out, _ := json.Marshal(v)
	return out
}
