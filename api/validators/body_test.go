package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
)

type sampleBody struct {
	Email  string `json:"email" validate:"required,email"`
	Points int    `json:"points" validate:"omitempty,min=1"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","points":0}`))
	var body sampleBody
	err := DecodeJSONBody(r, &body)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"email": "must be a valid email"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co","extra":1}`))
	var body sampleBody
	assert.True(t, pkgerrors.HasCode(DecodeJSONBody(r, &body), pkgerrors.CodeValidation))
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	type optional struct {
		Note string `json:"note" validate:"omitempty,max=5"`
	}
	var body optional
	require.NoError(t, DecodeOptionalJSONBody(httptest.NewRequest("POST", "/", nil), &body))

	var empty sampleBody
	assert.Error(t, DecodeJSONBody(httptest.NewRequest("POST", "/", nil), &empty))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Paloma", SanitizeString("  Paloma\t", 0))
	assert.Equal(t, "Crémant", SanitizeString("Crémant de Loire", 7))
	assert.Equal(t, "IPAdouble", SanitizeString("IPA\x00double", 20))
	assert.Equal(t, "Gin", SanitizeString("Gin and tonic", 4))
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co"}{"email":"c@d.co"}`))
	var body sampleBody
	assert.True(t, pkgerrors.HasCode(DecodeJSONBody(r, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	type note struct {
		Note string `json:"note"`
	}
	payload := `{"note":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	var body note
	err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(payload)), &body)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestValidationMessageUsesParam(t *testing.T) {
	type pin struct {
		Code string `json:"code" validate:"required,numeric,min=4"`
	}
	err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(`{"code":"12"}`)), &pin{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"code": "must be at least 4"}, typed.Details())
}
