// Package notify pushes canonical document payloads to an external
// dashboard. Pushes are best-effort: failures are logged and dropped, never
// retried, and never change a run's outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/billflow/billflow/internal/entity"
)

// Payload is the canonical cross-system representation of a processed
// document, independent of the internal storage schema.
type Payload struct {
	DocumentID    string        `json:"document_id"`
	CreatedAt     time.Time     `json:"created_at"`
	BillType      string        `json:"bill_type"`
	BillSubtype   string        `json:"bill_subtype"`
	ExtractedData entity.Fields `json:"extracted_data"`
	NetsuiteData  entity.Fields `json:"netsuite_data"`
	ObjectKey     string        `json:"uploaded_img"`
}

// PayloadFor builds the canonical payload for a document.
func PayloadFor(doc *entity.Document) Payload {
	return Payload{
		DocumentID:    doc.ID.String(),
		CreatedAt:     doc.CreatedAt,
		BillType:      doc.BillType,
		BillSubtype:   doc.BillSubtype,
		ExtractedData: doc.ExtractedData,
		NetsuiteData:  doc.NetsuiteData,
		ObjectKey:     doc.ObjectKey,
	}
}

type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// New builds a notifier for the configured dashboard URL. An empty URL
// disables pushes entirely.
func New(url string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Push sends the payload to the default dashboard destination. Skipped when
// no destination is configured.
func (n *Notifier) Push(ctx context.Context, p Payload) error {
	if n.url == "" {
		n.logger.Debug("notify.skip", "reason", "no destination configured", "document_id", p.DocumentID)
		return nil
	}
	return n.PushTo(ctx, n.url, p)
}

// PushTo sends an arbitrary JSON body to a destination URL with the bounded
// notification timeout. Used by Push and by the /forward endpoint.
func (n *Notifier) PushTo(ctx context.Context, url string, body any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("notify.push.failed", "url", url, "error", err)
		return fmt.Errorf("push to %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		n.logger.Error("notify.push.status_error", "url", url, "status", resp.StatusCode)
		return fmt.Errorf("push to %s: status %d", url, resp.StatusCode)
	}
	n.logger.Info("notify.push.ok", "url", url, "bytes", len(bs))
	return nil
}
