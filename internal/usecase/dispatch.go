package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/metrics"
	"PaperNotifier/internal/ports"
)

// DispatchStatus is the per-keyword delivery result.
type DispatchStatus string

const (
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
	DispatchSkipped DispatchStatus = "skipped"
)

// DispatchResult describes one keyword's notification.
type DispatchResult struct {
	Keyword    string             `json:"keyword"`
	Status     DispatchStatus     `json:"status"`
	Kind       domain.MessageKind `json:"kind,omitempty"`
	Results    int                `json:"results"`
	StatusCode int                `json:"status_code,omitempty"`
}

// OK is false only for failed deliveries.
func (r DispatchResult) OK() bool { return r.Status != DispatchFailed }

// DispatcherOptions tunes the dispatcher.
type DispatcherOptions struct {
	TopK        int
	NotifyEmpty bool
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Dispatcher formats ranked results with a Messenger and sends them.
type Dispatcher struct {
	messenger   ports.Messenger
	topK        int
	notifyEmpty bool
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewDispatcher binds a messenger.
func NewDispatcher(m ports.Messenger, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		messenger:   m,
		topK:        opts.TopK,
		notifyEmpty: opts.NotifyEmpty,
		timeout:     opts.Timeout,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Dispatch truncates results to top-k and sends them. Errors never escape;
// they are reported through the returned status.
func (d *Dispatcher) Dispatch(ctx context.Context, keyword string, results []domain.RankedResult) DispatchResult {
	if d.topK > 0 && len(results) > d.topK {
		results = results[:d.topK]
	}
	res := DispatchResult{Keyword: keyword, Results: len(results)}
	log := d.logger.With(zap.String("keyword", keyword), zap.String("messenger", d.messenger.Name()))

	if len(results) == 0 {
		log.Info("no new papers")
		if !d.notifyEmpty {
			res.Status = DispatchSkipped
			d.metrics.ObserveDispatch(string(res.Status))
			return res
		}
	}

	msg, err := d.messenger.Format(keyword, results)
	if err != nil {
		log.Error("format message failed", zap.Error(err))
		return d.fail(res)
	}
	res.Kind = msg.Kind

	delivery, err := d.send(ctx, msg)
	if err != nil {
		log.Error("send message failed", zap.Error(err))
		return d.fail(res)
	}
	res.StatusCode = delivery.StatusCode
	if !delivery.OK() {
		log.Warn("messenger rejected message",
			zap.Int("status", delivery.StatusCode),
			zap.String("body", delivery.Body))
		return d.fail(res)
	}

	log.Info("notification sent", zap.Int("papers", len(results)), zap.String("kind", string(msg.Kind)))
	res.Status = DispatchSent
	d.metrics.ObserveDispatch(string(res.Status))
	return res
}

func (d *Dispatcher) send(ctx context.Context, msg domain.Message) (domain.Delivery, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	delivery, err := d.messenger.Send(ctx, msg)
	if err != nil {
		return delivery, fmt.Errorf("%s: %w", d.messenger.Name(), err)
	}
	return delivery, nil
}

func (d *Dispatcher) fail(res DispatchResult) DispatchResult {
	res.Status = DispatchFailed
	d.metrics.ObserveDispatch(string(res.Status))
	return res
}
