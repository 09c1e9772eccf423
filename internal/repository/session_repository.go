package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Wrseno/whatsapp-bot/pkg/logger"
)

// SessionRepository guarda metadados informativos por sessão (status, telefone,
// timestamps). O registro em memória do manager continua sendo a fonte de
// verdade sobre quem está ativo; isto aqui alimenta diagnóstico e o health.
type SessionRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

type SessionRecord struct {
	ID              uuid.UUID
	SessionID       string
	Status          string
	PhoneNumber     *string
	JID             *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastConnectedAt *time.Time
}

func NewSessionRepository(db *sql.DB, log *logger.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: log}
}

func (r *SessionRepository) Migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS wa_sessions (
			id TEXT PRIMARY KEY,
			session_id TEXT UNIQUE NOT NULL,
			status TEXT NOT NULL,
			phone_number TEXT,
			jid TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_connected_at TIMESTAMP
		)
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("falha ao migrar tabela wa_sessions: %w", err)
	}
	return nil
}

// Upsert cria a linha da sessão se não existir, ou só atualiza o status.
func (r *SessionRepository) Upsert(sessionID, status string) error {
	now := time.Now()
	query := `
		INSERT INTO wa_sessions (id, session_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT(session_id) DO UPDATE SET status = $3, updated_at = $4
	`
	if _, err := r.db.Exec(query, uuid.New().String(), sessionID, status, now); err != nil {
		return fmt.Errorf("falha ao registrar sessão %s: %w", sessionID, err)
	}
	return nil
}

func (r *SessionRepository) UpdateStatus(sessionID, status, phoneNumber, jid string) error {
	now := time.Now()

	var lastConnected any
	if status == "connected" {
		lastConnected = now
	}

	query := `
		UPDATE wa_sessions
		SET status = $1,
		    phone_number = NULLIF($2, ''),
		    jid = NULLIF($3, ''),
		    updated_at = $4,
		    last_connected_at = COALESCE($5, last_connected_at)
		WHERE session_id = $6
	`
	result, err := r.db.Exec(query, status, phoneNumber, jid, now, lastConnected, sessionID)
	if err != nil {
		return fmt.Errorf("falha ao atualizar status da sessão %s: %w", sessionID, err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return r.Upsert(sessionID, status)
	}
	return nil
}

func (r *SessionRepository) Delete(sessionID string) error {
	if _, err := r.db.Exec(`DELETE FROM wa_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("falha ao remover sessão %s: %w", sessionID, err)
	}
	return nil
}

func (r *SessionRepository) Get(sessionID string) (*SessionRecord, error) {
	query := `
		SELECT id, session_id, status, phone_number, jid, created_at, updated_at, last_connected_at
		FROM wa_sessions
		WHERE session_id = $1
	`
	record := &SessionRecord{}
	var id string
	err := r.db.QueryRow(query, sessionID).Scan(
		&id,
		&record.SessionID,
		&record.Status,
		&record.PhoneNumber,
		&record.JID,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.LastConnectedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sessão não encontrada: %s", sessionID)
		}
		return nil, fmt.Errorf("falha ao buscar sessão %s: %w", sessionID, err)
	}
	record.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("id inválido para sessão %s: %w", sessionID, err)
	}
	return record, nil
}

func (r *SessionRepository) List() ([]*SessionRecord, error) {
	query := `
		SELECT id, session_id, status, phone_number, jid, created_at, updated_at, last_connected_at
		FROM wa_sessions
		ORDER BY created_at
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar sessões: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("falha ao fechar cursor: %v", err)
		}
	}()

	var records []*SessionRecord
	for rows.Next() {
		record := &SessionRecord{}
		var id string
		err := rows.Scan(
			&id,
			&record.SessionID,
			&record.Status,
			&record.PhoneNumber,
			&record.JID,
			&record.CreatedAt,
			&record.UpdatedAt,
			&record.LastConnectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler sessão: %w", err)
		}
		if record.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("id inválido: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
