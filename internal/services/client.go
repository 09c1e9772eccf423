package services

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/Wrseno/whatsapp-bot/internal/store"
	"github.com/Wrseno/whatsapp-bot/pkg/logger"
)

// Client é a fatia do cliente de protocolo que o manager precisa: conectar,
// enviar, deslogar e assinar eventos. O resto do whatsmeow fica atrás do
// adaptador, o que permite substituir por um fake nos testes.
type Client interface {
	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	IsConnected() bool
	PairedJID() (types.JID, bool)
	PushName() string
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	AddEventHandler(handler func(evt any))
	SendText(ctx context.Context, to types.JID, text string) error
	DeleteDevice(ctx context.Context) error
	Close() error
}

// ClientFactory abre as credenciais persistidas da sessão e constrói um
// Client amarrado a elas. A resolução de versão de protocolo e o formato do
// registro de credenciais são responsabilidade do whatsmeow.
type ClientFactory interface {
	NewClient(ctx context.Context, sessionID string) (Client, error)
}

type whatsmeowFactory struct {
	credentials *store.CredentialStore
}

func NewWhatsmeowFactory(credentials *store.CredentialStore) ClientFactory {
	return &whatsmeowFactory{credentials: credentials}
}

func (f *whatsmeowFactory) NewClient(ctx context.Context, sessionID string) (Client, error) {
	container, err := f.credentials.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("falha ao obter device da sessão %s: %w", sessionID, err)
	}

	waLogger := logger.NewWhatsAppLogger(fmt.Sprintf("[WA:%s] ", sessionID), logger.INFO)
	cli := whatsmeow.NewClient(device, waLogger)
	// O manager é dono da política de reconexão; o auto-reconnect da lib
	// duplicaria tentativas.
	cli.EnableAutoReconnect = false

	return &whatsmeowClient{client: cli, container: container}, nil
}

type whatsmeowClient struct {
	client    *whatsmeow.Client
	container interface{ Close() error }
}

func (c *whatsmeowClient) Connect() error {
	return c.client.Connect()
}

func (c *whatsmeowClient) Disconnect() {
	c.client.Disconnect()
}

func (c *whatsmeowClient) Logout(ctx context.Context) error {
	return c.client.Logout(ctx)
}

func (c *whatsmeowClient) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *whatsmeowClient) PairedJID() (types.JID, bool) {
	if c.client.Store == nil || c.client.Store.ID == nil {
		return types.EmptyJID, false
	}
	return *c.client.Store.ID, true
}

func (c *whatsmeowClient) PushName() string {
	if c.client.Store == nil {
		return ""
	}
	return c.client.Store.PushName
}

func (c *whatsmeowClient) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return c.client.GetQRChannel(ctx)
}

func (c *whatsmeowClient) AddEventHandler(handler func(evt any)) {
	c.client.AddEventHandler(handler)
}

func (c *whatsmeowClient) SendText(ctx context.Context, to types.JID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.SendMessage(ctx, to, &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
		},
	})
	if err != nil {
		return fmt.Errorf("falha ao enviar mensagem: %w", err)
	}
	return nil
}

func (c *whatsmeowClient) DeleteDevice(ctx context.Context) error {
	if c.client.Store == nil {
		return nil
	}
	return c.client.Store.Delete(ctx)
}

func (c *whatsmeowClient) Close() error {
	if c.container == nil {
		return nil
	}
	return c.container.Close()
}
