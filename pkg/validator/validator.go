package validator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateSessionID rejeita IDs vazios, longos demais ou com caracteres que
// não podem virar nome de diretório de credenciais.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionId é obrigatório")
	}
	if !sessionIDRegex.MatchString(sessionID) {
		return fmt.Errorf("formato de sessionId inválido")
	}
	return nil
}

func ValidateJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("corpo da requisição vazio")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("JSON inválido: %w", err)
	}

	return nil
}
