// Package messenger holds the transport shared by the chat adapters.
package messenger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"PaperNotifier/internal/domain"
)

const maxBody = 4096

// PostForm sends msg.Form as application/x-www-form-urlencoded and captures the
// status and a bounded body. Only transport failures are errors.
func PostForm(ctx context.Context, client *http.Client, msg domain.Message, header http.Header) (domain.Delivery, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.Endpoint, strings.NewReader(msg.Form.Encode()))
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("new request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.Delivery{StatusCode: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}
	return domain.Delivery{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}, nil
}

// ScoreLabel renders a score for display, or "" when the result is unscored.
func ScoreLabel(r domain.RankedResult) string {
	if !r.HasScore() {
		return ""
	}
	return fmt.Sprintf("%.3f", *r.Score)
}
