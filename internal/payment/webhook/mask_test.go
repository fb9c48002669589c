package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPayload(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"data": {"object": {
			"customer": "cus_1",
			"payment_method_details": {"card": {"last4": "4242"}},
			"charges": [{"billing_details": {"email": "a@example.com"}, "amount": 100}]
		}}
	}`)

	var got map[string]any
	require.NoError(t, json.Unmarshal(maskPayload(raw), &got))

	obj := got["data"].(map[string]any)["object"].(map[string]any)
	assert.Equal(t, "cus_1", obj["customer"])
	assert.Equal(t, "***", obj["payment_method_details"])

	charge := obj["charges"].([]any)[0].(map[string]any)
	assert.Equal(t, "***", charge["billing_details"])
	assert.EqualValues(t, 100, charge["amount"])
}

func TestMaskPayload_NotAnObject(t *testing.T) {
	raw := []byte(`[1,2,3]`)
	assert.Equal(t, raw, maskPayload(raw))
}
