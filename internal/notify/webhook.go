// README: Chat-bridge delivery — posts despatch events to the messaging gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rebeca/internal/types"
)

// ChatBridge forwards events to the external chat gateway (the service that
// owns the WhatsApp-style conversation with drivers and riders). The gateway
// renders the user-visible message; we only ship structured payloads.
type ChatBridge struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

func NewChatBridge(endpoint string, log *zap.Logger) *ChatBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatBridge{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log,
	}
}

func (b *ChatBridge) OfferToDriver(ctx context.Context, driverID types.ID, msg OfferMessage) error {
	return b.post(ctx, map[string]any{
		"to":       string(driverID),
		"audience": "driver",
		"template": "ride_offer",
		"payload":  msg,
	})
}

func (b *ChatBridge) RideUpdateToRider(ctx context.Context, riderID types.ID, msg RiderMessage) error {
	return b.post(ctx, map[string]any{
		"to":       string(riderID),
		"audience": "rider",
		"template": "ride_update",
		"payload":  msg,
	})
}

func (b *ChatBridge) post(ctx context.Context, payload map[string]any) error {
	if b.endpoint == "" {
		return ErrNoSession
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn("chat bridge unreachable", zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat bridge returned %s", resp.Status)
	}
	return nil
}
