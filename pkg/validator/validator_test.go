package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSessionID(t *testing.T) {
	valid := []string{
		"a",
		"loja-01",
		"cliente_x.v2",
		"A1",
		strings.Repeat("a", 64),
	}
	for _, id := range valid {
		assert.NoError(t, ValidateSessionID(id), id)
	}

	invalid := []string{
		"",
		"-loja",
		".oculto",
		"_interno",
		"a/b",
		"a b",
		"../fora",
		"loja!",
		strings.Repeat("a", 65),
	}
	for _, id := range invalid {
		assert.Error(t, ValidateSessionID(id), id)
	}
}

func TestValidateJSON(t *testing.T) {
	type body struct {
		SessionID string `json:"sessionId"`
	}

	var v body
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"sessionId":"loja-01"}`))
	require.NoError(t, ValidateJSON(req, &v))
	assert.Equal(t, "loja-01", v.SessionID)

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"sessionId":`))
	assert.Error(t, ValidateJSON(req, &body{}))

	req = httptest.NewRequest("POST", "/", strings.NewReader(``))
	assert.Error(t, ValidateJSON(req, &body{}))

	// campos desconhecidos são rejeitados
	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"sessionID":"x"}`))
	assert.Error(t, ValidateJSON(req, &body{}))
}
