// Package kakao sends paper digests through the KakaoTalk "send to me" memo API.
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/infrastructure/messenger"
	"PaperNotifier/internal/ports"
)

const (
	Name = "kakao"

	defaultPath = "/v2/api/talk/memo/default/send"
	customPath  = "/v2/api/talk/memo/send"
)

// Options configures the memo API.
type Options struct {
	AccessToken string
	APIURL      string
	// LinkURL is attached to default text templates.
	LinkURL string
	// Template is "default" or a numeric custom template id.
	Template   string
	HTTPClient *http.Client
}

// Messenger implements ports.Messenger for Kakao.
type Messenger struct {
	token      string
	apiURL     string
	linkURL    string
	templateID string
	client     *http.Client
}

var _ ports.Messenger = (*Messenger)(nil)

// New builds a Kakao messenger.
func New(opts Options) *Messenger {
	m := &Messenger{
		token:   opts.AccessToken,
		apiURL:  strings.TrimRight(opts.APIURL, "/"),
		linkURL: opts.LinkURL,
		client:  opts.HTTPClient,
	}
	if _, err := strconv.Atoi(opts.Template); err == nil {
		m.templateID = opts.Template
	}
	if m.client == nil {
		m.client = &http.Client{}
	}
	return m
}

func (m *Messenger) Name() string { return Name }

// Format renders the default text template, or the custom template arguments
// when a template id is configured. Empty results always use the text template.
func (m *Messenger) Format(keyword string, results []domain.RankedResult) (domain.Message, error) {
	if len(results) == 0 {
		return m.textMessage(domain.MessageEmpty, keyword, fmt.Sprintf("No new papers for %q.", keyword))
	}
	if m.templateID != "" {
		return m.customMessage(keyword, results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %s\n\n", keyword)
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s", i+1, oneLine(r.Document.Title))
		if label := messenger.ScoreLabel(r); label != "" {
			fmt.Fprintf(&b, " (%s)", label)
		}
		fmt.Fprintf(&b, "\n%s\n\n", r.Document.Link)
	}
	return m.textMessage(domain.MessageDigest, keyword, strings.TrimRight(b.String(), "\n"))
}

func (m *Messenger) textMessage(kind domain.MessageKind, keyword, text string) (domain.Message, error) {
	link := map[string]string{"web_url": m.linkURL, "mobile_url": m.linkURL}
	object, err := json.Marshal(map[string]any{
		"object_type":  "text",
		"text":         text,
		"link":         link,
		"button_title": "Open",
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal template object: %w", err)
	}
	return domain.Message{
		Kind:     kind,
		Keyword:  keyword,
		Endpoint: m.apiURL + defaultPath,
		Form:     url.Values{"template_object": {string(object)}},
	}, nil
}

func (m *Messenger) customMessage(keyword string, results []domain.RankedResult) (domain.Message, error) {
	args := map[string]string{
		"SEARCH_QUERY": keyword,
		"N_PAPERS":     strconv.Itoa(len(results)),
	}
	for i, r := range results {
		args[fmt.Sprintf("TITLE_%d", i+1)] = oneLine(r.Document.Title)
		args[fmt.Sprintf("LINK_%d", i+1)] = path.Base(r.Document.Link)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal template args: %w", err)
	}
	return domain.Message{
		Kind:     domain.MessageDigest,
		Keyword:  keyword,
		Endpoint: m.apiURL + customPath,
		Form: url.Values{
			"template_id":   {m.templateID},
			"template_args": {string(encoded)},
		},
	}, nil
}

// Send posts the message with the bearer token.
func (m *Messenger) Send(ctx context.Context, msg domain.Message) (domain.Delivery, error) {
	if m.token == "" {
		return domain.Delivery{}, fmt.Errorf("kakao messenger misconfigured: access token is empty")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.token)
	return messenger.PostForm(ctx, m.client, msg, header)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
