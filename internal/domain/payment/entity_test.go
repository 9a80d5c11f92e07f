package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawMessageExternalID(t *testing.T) {
	cases := []struct {
		name string
		meta map[string]interface{}
		want string
		ok   bool
	}{
		{"string id", map[string]interface{}{"id": "abc-1"}, "abc-1", true},
		{"int id", map[string]interface{}{"id": 42}, "42", true},
		{"int64 id", map[string]interface{}{"id": int64(42)}, "42", true},
		{"float id from json", map[string]interface{}{"id": float64(42)}, "42", true},
		{"empty string", map[string]interface{}{"id": ""}, "", false},
		{"missing", map[string]interface{}{}, "", false},
		{"nil meta", nil, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := RawMessage{Meta: tc.meta}
			got, ok := msg.ExternalID()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
