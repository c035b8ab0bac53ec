package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

func TestSanitizeStringTrimsAndStripsControls(t *testing.T) {
	require.Equal(t, "hola\nmundo", SanitizeString("  hola\x00\nmundo\x07  ", 0))
}

func TestSanitizeStringCapsRunes(t *testing.T) {
	got := SanitizeString("ñandú piñata", 5)
	require.Equal(t, "ñandú", got)
}

type transitionBody struct {
	Status string `json:"status" validate:"required,oneof=confirmed cancelled"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"confirmed","extra":1}`))
	var body transitionBody
	err := DecodeJSONBody(req, &body)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"shipped"}`))
	var body transitionBody
	err := DecodeJSONBody(req, &body)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"cancelled"}`))
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, "cancelled", body.Status)
}

func TestDecodeLenientJSONIgnoresUnknownFields(t *testing.T) {
	var body transitionBody
	require.NoError(t, DecodeLenientJSON([]byte(`{"status":"confirmed","provider":"x"}`), &body))
	require.Equal(t, "confirmed", body.Status)
}
