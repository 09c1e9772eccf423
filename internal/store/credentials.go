package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/Wrseno/whatsapp-bot/pkg/logger"
	"github.com/Wrseno/whatsapp-bot/pkg/validator"
)

// CredentialStore é dono do layout em disco: um diretório por sessionId sob a
// raiz, contendo um banco sqlite do whatsmeow. O conteúdo do banco é opaco;
// este pacote só cuida de criar, enumerar e apagar diretórios.
type CredentialStore struct {
	root   string
	logger *logger.Logger
}

func NewCredentialStore(root string, log *logger.Logger) *CredentialStore {
	return &CredentialStore{root: root, logger: log}
}

func (s *CredentialStore) Root() string {
	return s.root
}

func (s *CredentialStore) Dir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// Open garante o diretório da sessão e abre o container de credenciais do
// whatsmeow dentro dele. Um diretório novo produz um container vazio, que
// resulta em um device novo (pareamento por QR).
func (s *CredentialStore) Open(ctx context.Context, sessionID string) (*sqlstore.Container, error) {
	if err := validator.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	dir := s.Dir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de credenciais: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(dir, "whatsmeow.db"))
	waLogger := logger.NewWhatsAppLogger(fmt.Sprintf("[Store:%s] ", sessionID), logger.WARN)

	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLogger)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir banco de credenciais: %w", err)
	}
	return container, nil
}

// List enumera os subdiretórios imediatos da raiz. Raiz inexistente não é
// erro: significa apenas que nenhuma sessão foi criada ainda.
func (s *CredentialStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("falha ao listar diretório de sessões: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// Delete remove recursivamente o diretório da sessão. Diretório ausente é
// sucesso (destroy é idempotente).
func (s *CredentialStore) Delete(sessionID string) error {
	if err := validator.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(sessionID)); err != nil {
		return fmt.Errorf("falha ao remover credenciais de %s: %w", sessionID, err)
	}
	return nil
}
