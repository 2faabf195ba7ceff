// Package telegram sends paper digests to a chat via the Bot API.
package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/infrastructure/messenger"
	"PaperNotifier/internal/ports"
)

const Name = "telegram"

const (
	// maxTextRunes is the sendMessage text limit.
	maxTextRunes  = 4096
	maxTitleRunes = 300
	// moreReserve leaves room for the "and N more" trailer.
	moreReserve = 32
)

// Options configures the bot.
type Options struct {
	BotToken   string
	ChatID     string
	APIURL     string
	HTTPClient *http.Client
}

// Messenger implements ports.Messenger for Telegram.
type Messenger struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

var _ ports.Messenger = (*Messenger)(nil)

// New registers bot token and chat identifier.
func New(opts Options) *Messenger {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Messenger{
		botToken: opts.BotToken,
		chatID:   opts.ChatID,
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		client:   client,
	}
}

func (m *Messenger) Name() string { return Name }

// Format builds an HTML sendMessage request.
func (m *Messenger) Format(keyword string, results []domain.RankedResult) (domain.Message, error) {
	kind := domain.MessageDigest
	var b strings.Builder
	if len(results) == 0 {
		kind = domain.MessageEmpty
		fmt.Fprintf(&b, "No new papers for <b>%s</b>.", html.EscapeString(keyword))
	} else {
		fmt.Fprintf(&b, "<b>%s</b>: %d new papers\n", html.EscapeString(keyword), len(results))
		used := utf8.RuneCountInString(b.String())
		for i, r := range results {
			line := formatLine(i+1, r)
			n := utf8.RuneCountInString(line)
			if used+n > maxTextRunes-moreReserve {
				fmt.Fprintf(&b, "\n\n…and %d more", len(results)-i)
				break
			}
			b.WriteString(line)
			used += n
		}
	}

	return domain.Message{
		Kind:     kind,
		Keyword:  keyword,
		Endpoint: fmt.Sprintf("%s/bot%s/sendMessage", m.apiURL, m.botToken),
		Form: url.Values{
			"chat_id":                  {m.chatID},
			"text":                     {b.String()},
			"parse_mode":               {"HTML"},
			"disable_web_page_preview": {"true"},
		},
	}, nil
}

func formatLine(n int, r domain.RankedResult) string {
	title := strings.Join(strings.Fields(r.Document.Title), " ")
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes-1]) + "…"
	}
	line := fmt.Sprintf("\n%d. <a href=\"%s\">%s</a>", n,
		html.EscapeString(r.Document.Link), html.EscapeString(title))
	if label := messenger.ScoreLabel(r); label != "" {
		line += fmt.Sprintf(" (%s)", label)
	}
	return line
}

// Send posts the message to the Bot API.
func (m *Messenger) Send(ctx context.Context, msg domain.Message) (domain.Delivery, error) {
	if m.botToken == "" || m.chatID == "" {
		return domain.Delivery{}, fmt.Errorf("telegram messenger misconfigured")
	}
	return messenger.PostForm(ctx, m.client, msg, nil)
}
