package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/Wrseno/whatsapp-bot/internal/models"
	"github.com/Wrseno/whatsapp-bot/internal/repository"
	"github.com/Wrseno/whatsapp-bot/internal/store"
	"github.com/Wrseno/whatsapp-bot/internal/webhook"
	"github.com/Wrseno/whatsapp-bot/pkg/logger"
)

var ErrSessionExists = errors.New("sessão já registrada")

// RetryPolicy decide quanto esperar antes da próxima tentativa de reconexão.
// O segundo retorno falso encerra as tentativas.
type RetryPolicy interface {
	NextDelay(attempt int) (time.Duration, bool)
}

// FixedDelay reconecta para sempre com intervalo fixo.
type FixedDelay struct {
	Delay time.Duration
}

func (p FixedDelay) NextDelay(int) (time.Duration, bool) {
	return p.Delay, true
}

type session struct {
	id              string
	state           models.SessionState
	client          Client
	attempts        int
	cancelQR        context.CancelFunc
	cancelHeartbeat context.CancelFunc
}

type Options struct {
	Factory           ClientFactory
	Credentials       *store.CredentialStore
	Notifier          *webhook.Notifier
	Repository        *repository.SessionRepository
	Retry             RetryPolicy
	HeartbeatInterval time.Duration
	QRTerminal        bool
	Logger            *logger.Logger
}

// Manager é dono do registro de sessões ativas: cria, destrói e restaura
// sessões, reage aos eventos de conexão e liga o cliente de protocolo ao
// notificador de webhooks e ao armazenamento de credenciais.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	// um mutex por sessionId serializa create/destroy/reconexão da mesma
	// chave; o mapa só cresce, aceitável para a contagem de sessões esperada
	opsMu sync.Mutex
	ops   map[string]*sync.Mutex

	factory           ClientFactory
	credentials       *store.CredentialStore
	notifier          *webhook.Notifier
	repository        *repository.SessionRepository
	retry             RetryPolicy
	heartbeatInterval time.Duration
	qrTerminal        bool
	logger            *logger.Logger
}

func NewManager(opts Options) *Manager {
	if opts.Retry == nil {
		opts.Retry = FixedDelay{Delay: 3 * time.Second}
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("[Manager] ", logger.INFO)
	}
	return &Manager{
		sessions:          make(map[string]*session),
		ops:               make(map[string]*sync.Mutex),
		factory:           opts.Factory,
		credentials:       opts.Credentials,
		notifier:          opts.Notifier,
		repository:        opts.Repository,
		retry:             opts.Retry,
		heartbeatInterval: opts.HeartbeatInterval,
		qrTerminal:        opts.QRTerminal,
		logger:            opts.Logger,
	}
}

func (m *Manager) lockSession(sessionID string) func() {
	m.opsMu.Lock()
	l, ok := m.ops[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.ops[sessionID] = l
	}
	m.opsMu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateSession abre as credenciais, registra a sessão como connecting e
// conecta. Falhas viram um connection-update disconnected e a sessão fica
// fora do registro; o erro retornado existe para log e testes, as bordas
// descartam.
func (m *Manager) CreateSession(ctx context.Context, sessionID string) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if err := m.create(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionExists) {
			return err
		}
		m.logger.Errorf("[%s] Falha ao criar sessão: %v", sessionID, err)
		m.notifier.ConnectionUpdate(sessionID, models.StatusDisconnected, nil)
		return err
	}
	return nil
}

func (m *Manager) create(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return ErrSessionExists
	}
	m.mu.Unlock()

	client, err := m.factory.NewClient(ctx, sessionID)
	if err != nil {
		return err
	}

	sess := &session{id: sessionID, state: models.StateConnecting, client: client}
	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()
	m.recordStatus(sessionID, string(models.StateConnecting), "", "")

	client.AddEventHandler(m.eventHandler(sessionID, client))

	if _, paired := client.PairedJID(); !paired {
		qrCtx, cancelQR := context.WithCancel(context.Background())
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancelQR()
			m.teardown(sessionID, sess)
			return fmt.Errorf("falha ao abrir canal de QR: %w", err)
		}
		m.mu.Lock()
		sess.cancelQR = cancelQR
		m.mu.Unlock()
		go m.watchQR(sessionID, qrChan)
	}

	if err := client.Connect(); err != nil {
		m.teardown(sessionID, sess)
		return fmt.Errorf("falha ao conectar: %w", err)
	}

	m.logger.Infof("[%s] Sessão registrada, conectando...", sessionID)
	return nil
}

// teardown desfaz um registro parcial: só remove se a entrada ainda for a
// desta tentativa.
func (m *Manager) teardown(sessionID string, sess *session) {
	m.mu.Lock()
	if cur, ok := m.sessions[sessionID]; ok && cur == sess {
		delete(m.sessions, sessionID)
	}
	if sess.cancelQR != nil {
		sess.cancelQR()
		sess.cancelQR = nil
	}
	if sess.cancelHeartbeat != nil {
		sess.cancelHeartbeat()
		sess.cancelHeartbeat = nil
	}
	m.mu.Unlock()

	sess.client.Disconnect()
	if err := sess.client.Close(); err != nil {
		m.logger.Warnf("[%s] Falha ao fechar cliente: %v", sessionID, err)
	}
}

func (m *Manager) eventHandler(sessionID string, client Client) func(evt any) {
	return func(evt any) {
		switch e := evt.(type) {
		case *events.Connected:
			m.handleOpen(sessionID, client)
		case *events.LoggedOut:
			m.handleLoggedOut(sessionID, client)
		case *events.Disconnected:
			m.handleClose(sessionID, client, "conexão encerrada")
		case *events.StreamReplaced:
			m.handleClose(sessionID, client, "stream substituído por outro dispositivo")
		case *events.ConnectFailure:
			m.handleClose(sessionID, client, fmt.Sprintf("falha de conexão: %v", e.Reason))
		case *events.Message:
			m.handleMessage(sessionID, client, e)
		}
	}
}

func (m *Manager) handleOpen(sessionID string, client Client) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.client != client {
		m.mu.Unlock()
		return
	}
	sess.state = models.StateOpen
	sess.attempts = 0
	if sess.cancelQR != nil {
		sess.cancelQR()
		sess.cancelQR = nil
	}
	m.mu.Unlock()

	info := &models.PhoneInfo{}
	if jid, paired := client.PairedJID(); paired {
		info = &models.PhoneInfo{
			JID:   jid.String(),
			Name:  client.PushName(),
			Phone: jid.User,
		}
	}

	m.logger.Infof("[%s] Sessão conectada: %s (%s)", sessionID, info.Name, info.Phone)
	m.notifier.ConnectionUpdate(sessionID, models.StatusConnected, info)
	m.recordStatus(sessionID, models.StatusConnected, info.Phone, info.JID)
	m.startHeartbeat(sessionID, sess)
}

// handleClose trata qualquer encerramento reconectável: um connection-update
// disconnected por evento e uma nova tentativa após o delay da política.
func (m *Manager) handleClose(sessionID string, client Client, cause string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.client != client {
		m.mu.Unlock()
		return
	}
	sess.state = models.StateDisconnected
	if sess.cancelHeartbeat != nil {
		sess.cancelHeartbeat()
		sess.cancelHeartbeat = nil
	}
	if sess.cancelQR != nil {
		sess.cancelQR()
		sess.cancelQR = nil
	}
	sess.attempts++
	attempt := sess.attempts
	m.mu.Unlock()

	m.logger.Warnf("[%s] Conexão fechada (%s), tentativa %d", sessionID, cause, attempt)
	m.notifier.ConnectionUpdate(sessionID, models.StatusDisconnected, nil)
	m.recordStatus(sessionID, models.StatusDisconnected, "", "")

	go m.reconnectLater(sessionID, sess, attempt)
}

func (m *Manager) reconnectLater(sessionID string, sess *session, attempt int) {
	delay, retry := m.retry.NextDelay(attempt)
	if !retry {
		m.logger.Warnf("[%s] Política de reconexão esgotada, removendo sessão", sessionID)
		m.teardown(sessionID, sess)
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	<-timer.C

	// a sessão pode ter sido destruída ou recriada durante a espera
	m.mu.Lock()
	cur, present := m.sessions[sessionID]
	if !present || cur != sess || cur.state != models.StateDisconnected {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	sess.client.Disconnect()
	if err := sess.client.Close(); err != nil {
		m.logger.Warnf("[%s] Falha ao fechar cliente antigo: %v", sessionID, err)
	}

	if err := m.CreateSession(context.Background(), sessionID); err != nil {
		m.logger.Errorf("[%s] Reconexão falhou: %v", sessionID, err)
	}
}

// handleLoggedOut é o único encerramento terminal: a conta foi deslogada
// remotamente, então a sessão sai do registro sem reagendamento e o device
// persistido é invalidado.
func (m *Manager) handleLoggedOut(sessionID string, client Client) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.client != client {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	if sess.cancelHeartbeat != nil {
		sess.cancelHeartbeat()
		sess.cancelHeartbeat = nil
	}
	if sess.cancelQR != nil {
		sess.cancelQR()
		sess.cancelQR = nil
	}
	m.mu.Unlock()

	m.logger.Warnf("[%s] Sessão deslogada remotamente, removendo sem reconectar", sessionID)
	m.notifier.ConnectionUpdate(sessionID, models.StatusDisconnected, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.DeleteDevice(ctx); err != nil {
		m.logger.Warnf("[%s] Falha ao apagar device: %v", sessionID, err)
	}
	client.Disconnect()
	if err := client.Close(); err != nil {
		m.logger.Warnf("[%s] Falha ao fechar cliente: %v", sessionID, err)
	}
	m.recordStatus(sessionID, "logged_out", "", "")
}

func (m *Manager) handleMessage(sessionID string, client Client, evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}

	chat := evt.Info.Chat
	reply, err := m.notifier.IncomingMessage(context.Background(), sessionID, chat.String(), text)
	if err != nil {
		m.logger.Errorf("[%s] Falha ao repassar mensagem ao backend: %v", sessionID, err)
		return
	}
	if reply == "" {
		return
	}
	if !m.Has(sessionID) {
		// a sessão foi destruída durante o round trip ao backend
		m.logger.Warnf("[%s] Sessão removida durante o round trip, resposta descartada", sessionID)
		return
	}
	if err := client.SendText(context.Background(), chat, reply); err != nil {
		m.logger.Errorf("[%s] Falha ao responder para %s: %v", sessionID, chat, err)
	}
}

func (m *Manager) watchQR(sessionID string, qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			png, err := qrcode.Encode(item.Code, qrcode.Medium, 256)
			if err != nil {
				m.logger.Errorf("[%s] Falha ao gerar QR code PNG: %v", sessionID, err)
				continue
			}
			m.notifier.QRUpdate(sessionID, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(png))
			if m.qrTerminal {
				m.logger.Infof("[%s] Escaneie o QR Code abaixo:", sessionID)
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			}
		case "success":
			return
		case "timeout":
			m.logger.Warnf("[%s] Pareamento expirou sem leitura do QR", sessionID)
			return
		default:
			if item.Error != nil {
				m.logger.Errorf("[%s] Erro no pareamento: %v", sessionID, item.Error)
			}
			return
		}
	}
}

func (m *Manager) startHeartbeat(sessionID string, sess *session) {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if sess.cancelHeartbeat != nil {
		sess.cancelHeartbeat()
	}
	sess.cancelHeartbeat = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// a checagem de presença cobre a janela entre a remoção
				// do registro e o cancel
				if !m.Has(sessionID) {
					return
				}
				m.notifier.Heartbeat(sessionID)
			}
		}
	}()
}

// DestroySession encerra a sessão ativa (se houver) e sempre tenta apagar as
// credenciais em disco. Sub-passos que falham são logados; a operação em si
// nunca falha e é idempotente.
func (m *Manager) DestroySession(ctx context.Context, sessionID string) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		if sess.cancelHeartbeat != nil {
			sess.cancelHeartbeat()
			sess.cancelHeartbeat = nil
		}
		if sess.cancelQR != nil {
			sess.cancelQR()
			sess.cancelQR = nil
		}
	}
	m.mu.Unlock()

	if ok {
		if err := sess.client.Logout(ctx); err != nil {
			m.logger.Warnf("[%s] Logout falhou: %v", sessionID, err)
		}
		sess.client.Disconnect()
		if err := sess.client.Close(); err != nil {
			m.logger.Warnf("[%s] Falha ao fechar cliente: %v", sessionID, err)
		}
	}

	if err := m.credentials.Delete(sessionID); err != nil {
		m.logger.Warnf("[%s] Falha ao remover credenciais: %v", sessionID, err)
	}
	if m.repository != nil {
		if err := m.repository.Delete(sessionID); err != nil {
			m.logger.Warnf("[%s] Falha ao remover metadados: %v", sessionID, err)
		}
	}

	m.logger.Infof("[%s] Sessão destruída", sessionID)
	return nil
}

// RestoreSessions recria, uma a uma, as sessões com credenciais em disco.
// Roda uma vez no boot; diretórios sem conteúdo válido caem no caminho de
// erro do create.
func (m *Manager) RestoreSessions(ctx context.Context) {
	ids, err := m.credentials.List()
	if err != nil {
		m.logger.Errorf("Falha ao enumerar sessões persistidas: %v", err)
		return
	}
	if len(ids) == 0 {
		m.logger.Info("Nenhuma sessão persistida para restaurar")
		return
	}

	m.logger.Infof("Restaurando %d sessões persistidas...", len(ids))
	for _, id := range ids {
		if err := m.CreateSession(ctx, id); err != nil {
			m.logger.Errorf("[%s] Falha ao restaurar sessão: %v", id, err)
		}
	}
	m.logger.Info("Restauração de sessões concluída")
}

func (m *Manager) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	return ok
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) SessionIDs() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (m *Manager) State(sessionID string) (models.SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.state, true
}

// Shutdown desconecta todas as sessões sem apagar credenciais; elas voltam
// no próximo boot via RestoreSessions.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for id, sess := range sessions {
		if sess.cancelHeartbeat != nil {
			sess.cancelHeartbeat()
		}
		if sess.cancelQR != nil {
			sess.cancelQR()
		}
		sess.client.Disconnect()
		if err := sess.client.Close(); err != nil {
			m.logger.Warnf("[%s] Falha ao fechar cliente: %v", id, err)
		}
	}
	m.logger.Info("Todas as sessões desconectadas")
}

func (m *Manager) recordStatus(sessionID, status, phone, jid string) {
	if m.repository == nil {
		return
	}
	if err := m.repository.UpdateStatus(sessionID, status, phone, jid); err != nil {
		m.logger.Warnf("[%s] Falha ao gravar metadados: %v", sessionID, err)
	}
}
