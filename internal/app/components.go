package app

import (
	"fmt"
	"net/http"
	"strings"

	"PaperNotifier/internal/config"
	"PaperNotifier/internal/infrastructure/llm"
	"PaperNotifier/internal/infrastructure/messenger/kakao"
	"PaperNotifier/internal/infrastructure/messenger/telegram"
	"PaperNotifier/internal/infrastructure/ml"
	"PaperNotifier/internal/ports"
	"PaperNotifier/internal/settings"
	"PaperNotifier/internal/usecase"
)

// components builds scorers and messengers from operator settings.
type components struct {
	cfg    config.Config
	client *http.Client
}

var _ usecase.Components = components{}

// Scorer picks the chat scorer for "openai:<model>" and the cross-encoder
// service for any other model identifier.
func (c components) Scorer(model string) (ports.Scorer, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, nil
	}
	if strings.HasPrefix(model, llm.ModelPrefix) {
		if c.cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("reranker %s needs openai.api_key", model)
		}
		return llm.NewChatGPTScorer(llm.Options{
			Endpoint:   c.cfg.OpenAI.Endpoint,
			Model:      model,
			APIKey:     c.cfg.OpenAI.APIKey,
			HTTPClient: c.client,
		}), nil
	}
	if c.cfg.ML.Endpoint == "" {
		return nil, fmt.Errorf("reranker %s needs ml.endpoint", model)
	}
	return ml.NewClient(ml.Options{
		Endpoint:   c.cfg.ML.Endpoint,
		APIKey:     c.cfg.ML.APIKey,
		Model:      model,
		Activation: c.cfg.ML.Activation,
		HTTPClient: c.client,
	}), nil
}

func (c components) Messenger(s settings.Settings) (ports.Messenger, error) {
	switch s.Messenger {
	case settings.MessengerKakao:
		return kakao.New(kakao.Options{
			AccessToken: c.cfg.Kakao.AccessToken,
			APIURL:      c.cfg.Kakao.APIURL,
			LinkURL:     c.cfg.Kakao.LinkURL,
			Template:    s.Template,
			HTTPClient:  c.client,
		}), nil
	case settings.MessengerTelegram:
		return telegram.New(telegram.Options{
			BotToken:   c.cfg.Telegram.BotToken,
			ChatID:     c.cfg.Telegram.ChatID,
			APIURL:     c.cfg.Telegram.APIURL,
			HTTPClient: c.client,
		}), nil
	default:
		return nil, fmt.Errorf("unknown messenger %q", s.Messenger)
	}
}
