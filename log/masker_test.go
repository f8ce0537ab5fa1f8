/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMasker_DefaultMasks(t *testing.T) {
	masker := NewMasker(DefaultMasks)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "authorization header",
			in:   "POST /api/v3/lk/documents/create HTTP/1.1\r\nAuthorization: Bearer eyJhbGciOi\r\nContent-Type: application/json\r\n",
			want: "POST /api/v3/lk/documents/create HTTP/1.1\r\nAuthorization: ***\r\nContent-Type: application/json\r\n",
		},
		{
			name: "signature header",
			in:   "Signature: MIIGdQYJKoZIhvcNAQcCoIIGZjCCBmIC\r\nAccept: */*\r\n",
			want: "Signature: ***\r\nAccept: */*\r\n",
		},
		{
			name: "signature in json",
			in:   `{"doc_id":"42","signature" : "MIIGdQ=="}`,
			want: `{"doc_id":"42","signature": "***"}`,
		},
		{
			name: "token in query",
			in:   "https://ismp.crpt.ru/api/v3/auth/cert?token=abc123&pg=milk",
			want: "https://ismp.crpt.ru/api/v3/auth/cert?token=***&pg=milk",
		},
		{
			name: "token in json",
			in:   `{"token":"abc.def.ghi"}`,
			want: `{"token": "***"}`,
		},
		{
			name: "no secrets",
			in:   `{"doc_id":"42","doc_type":"LP_INTRODUCE_GOODS"}`,
			want: `{"doc_id":"42","doc_type":"LP_INTRODUCE_GOODS"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, masker.Mask(tt.in))
		})
	}
}

func TestMasker_CustomRules(t *testing.T) {
	masker := NewMasker([]MaskingRuleConfig{
		{
			Field:   "owner_inn",
			Formats: []FieldMaskFormat{FieldMaskFormatJSON},
			Masks:   []MaskConfig{{RegExp: `inn:\d+`, Mask: "inn:***"}},
		},
	})

	require.Equal(t, `{"owner_inn": "***"}`, masker.Mask(`{"owner_inn":"7700000000"}`))
	require.Equal(t, "owner_inn inn:***", masker.Mask("owner_inn inn:7700000000"))
	// Field name is not mentioned, so masks are not applied at all.
	require.Equal(t, "inn:7700000000", masker.Mask("inn:7700000000"))
}
