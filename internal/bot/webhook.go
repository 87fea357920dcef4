package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// WebhookTransport talks to the messaging platform's HTTP bridge:
// outbound messages are POSTed to the bridge's send endpoint, inbound
// updates arrive on our webhook handler.
type WebhookTransport struct {
	sendURL string
	token   string
	client  *http.Client
	logger  observability.Logger
}

func NewWebhookTransport(sendURL, token string, logger observability.Logger) *WebhookTransport {
	return &WebhookTransport{
		sendURL: sendURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type outboundMessage struct {
	ChatID   int64      `json:"chat_id"`
	Text     string     `json:"text"`
	Keyboard [][]Button `json:"keyboard,omitempty"`
}

func (t *WebhookTransport) SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]Button) error {
	return t.post(ctx, "/messages", outboundMessage{ChatID: chatID, Text: text, Keyboard: keyboard})
}

// SendText satisfies the notifier's Messenger interface.
func (t *WebhookTransport) SendText(ctx context.Context, chatID int64, text string) error {
	return t.SendMessage(ctx, chatID, text, nil)
}

func (t *WebhookTransport) AnswerCallback(ctx context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	return t.post(ctx, "/callbacks/ack", map[string]string{"callback_id": callbackID})
}

func (t *WebhookTransport) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal outbound payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.sendURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build outbound request")
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "outbound request failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("outbound request returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookServer exposes the inbound updates endpoint.
type WebhookServer struct {
	router *Router
	logger observability.Logger
}

func NewWebhookServer(router *Router, logger observability.Logger) *WebhookServer {
	return &WebhookServer{router: router, logger: logger}
}

func (s *WebhookServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/updates", s.handleUpdate)
	return r
}

func (s *WebhookServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var u Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&u); err != nil {
		s.logger.WithError(err).Warn("malformed update payload")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if u.ChatID == 0 {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	s.router.HandleUpdate(r.Context(), u)
	w.WriteHeader(http.StatusOK)
}
