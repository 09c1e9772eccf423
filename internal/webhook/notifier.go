package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Wrseno/whatsapp-bot/internal/models"
	"github.com/Wrseno/whatsapp-bot/pkg/logger"
)

const (
	PathQRUpdate         = "/api/webhook/wa/qr-update"
	PathConnectionUpdate = "/api/webhook/wa/connection-update"
	PathIncomingMessage  = "/api/webhook/wa/incoming-message"
	PathHeartbeat        = "/api/webhook/wa/heartbeat"
)

// Notifier entrega webhooks ao backend em modo melhor-esforço: sem retry, sem
// fila.  Notify devolve erro para quem precisa testar o resultado; os
// wrappers por evento logam e descartam, que é o contrato das bordas.
type Notifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewNotifier(baseURL string, timeout time.Duration, log *logger.Logger) *Notifier {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Notifier{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: tr,
			Timeout:   timeout,
		},
		logger: log,
	}
}

func (n *Notifier) Notify(ctx context.Context, path string, payload any) error {
	body, err := n.post(ctx, path, payload)
	if err != nil {
		return err
	}
	_ = body.Close()
	return nil
}

func (n *Notifier) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("falha ao serializar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("falha ao criar requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("falha ao entregar webhook: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("webhook respondeu status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (n *Notifier) QRUpdate(sessionID, qrCode string) {
	err := n.Notify(context.Background(), PathQRUpdate, models.QRUpdatePayload{
		SessionID: sessionID,
		QRCode:    qrCode,
	})
	if err != nil {
		n.logger.Errorf("[%s] Falha ao enviar webhook %s: %v", sessionID, PathQRUpdate, err)
	}
}

func (n *Notifier) ConnectionUpdate(sessionID, status string, phoneInfo *models.PhoneInfo) {
	err := n.Notify(context.Background(), PathConnectionUpdate, models.ConnectionUpdatePayload{
		SessionID: sessionID,
		Status:    status,
		PhoneInfo: phoneInfo,
	})
	if err != nil {
		n.logger.Errorf("[%s] Falha ao enviar webhook %s: %v", sessionID, PathConnectionUpdate, err)
	}
}

func (n *Notifier) Heartbeat(sessionID string) {
	err := n.Notify(context.Background(), PathHeartbeat, models.HeartbeatPayload{
		SessionID: sessionID,
	})
	if err != nil {
		n.logger.Errorf("[%s] Falha ao enviar webhook %s: %v", sessionID, PathHeartbeat, err)
	}
}

// IncomingMessage repassa a mensagem ao backend e devolve o texto de resposta
// opcional ({reply}) vindo no corpo. Corpo que não é JSON válido é tratado
// como ausência de resposta, não como erro.
func (n *Notifier) IncomingMessage(ctx context.Context, sessionID, from, text string) (string, error) {
	body, err := n.post(ctx, PathIncomingMessage, models.IncomingMessagePayload{
		SessionID: sessionID,
		From:      from,
		Text:      text,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	var reply models.BackendReply
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&reply); err != nil {
		return "", nil
	}
	return reply.Reply, nil
}
