package wabot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/sdiouf/wabot/pkg/wautil"
)

// defaultFallbackPattern matches the conversational escape words used to
// abandon a next-step flow.
var defaultFallbackPattern = regexp.MustCompile(`(?i)^(end|stop|cancel)$`)

// envelopePath is the minimum shape a webhook delivery must have before the
// dispatcher will look at it.
const envelopePath = "entry.0.changes.0.value"

// ErrorHandler receives handler callback failures from the dispatch error
// boundary. The update may be inspected for sender and message details.
type ErrorHandler func(upd *Update, err error)

// QueueStatus describes the dispatcher's delivery queue.
type QueueStatus struct {
	Size       int
	Processing bool
}

type queueItem struct {
	ctx     context.Context
	payload *WebhookPayload
	done    chan struct{}
}

type nextStepConfig struct {
	primary  *Handler
	fallback *Handler
}

// dispatcher owns the ordered delivery queue, the registered handler list and
// the per-user next-step overrides. All mutable per-conversation state is
// touched from within the single drain loop, so ordering is the only
// synchronization the conversation data needs; the mutex guards the queue
// hand-off between concurrent submitters.
type dispatcher struct {
	client  *Client
	store   *ContextStore
	logger  *zap.Logger
	onError ErrorHandler

	numberID   string
	markAsRead bool

	mu       sync.Mutex
	queue    []*queueItem
	draining bool

	handlerMu sync.RWMutex
	handlers  []*Handler
	nextSteps map[string]*nextStepConfig
}

func newDispatcher(client *Client, store *ContextStore, logger *zap.Logger) *dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dispatcher{
		client:     client,
		store:      store,
		logger:     logger,
		numberID:   client.cfg.NumberID,
		markAsRead: client.cfg.MarkAsRead,
		nextSteps:  make(map[string]*nextStepConfig),
	}
}

// register appends the handler and returns its position in registration
// order. Order is significant: it is the tie-break when several handlers
// could match the same message.
func (d *dispatcher) register(h *Handler) int {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	d.handlers = append(d.handlers, h)
	return len(d.handlers) - 1
}

// removeAllHandlers drops every registered handler. Intended for tests.
func (d *dispatcher) removeAllHandlers() {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	d.handlers = nil
}

// setNextStep installs a single-use override for the sender, replacing any
// existing one.
func (d *dispatcher) setNextStep(sender string, cfg *nextStepConfig) {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	d.nextSteps[sender] = cfg
}

// clearNextStep removes the sender's override. No-op when none exists.
func (d *dispatcher) clearNextStep(sender string) {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	delete(d.nextSteps, sender)
}

// status reports the queue size and whether a drain is in progress.
func (d *dispatcher) status() QueueStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return QueueStatus{Size: len(d.queue), Processing: d.draining}
}

// processJSON validates the raw delivery against the webhook envelope shape
// and dispatches it. Bytes that are not valid JSON or lack the envelope are
// silently dropped, matching the treatment of malformed parsed payloads.
func (d *dispatcher) processJSON(ctx context.Context, raw []byte) error {
	if !wautil.HasKey(raw, envelopePath) {
		d.logger.Debug("dropping delivery without webhook envelope")
		return nil
	}
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		d.logger.Debug("dropping undecodable delivery", zap.Error(err))
		return nil
	}
	return d.process(ctx, &payload)
}

// process appends the payload to the delivery queue and, when no drain is
// running, drains it on the calling goroutine. The call returns once the
// submitted payload and everything queued ahead of it has been fully
// processed. A canceled context abandons the wait; the payload itself is
// still processed in order by whichever goroutine is draining.
func (d *dispatcher) process(ctx context.Context, payload *WebhookPayload) error {
	item := &queueItem{ctx: ctx, payload: payload, done: make(chan struct{})}

	d.mu.Lock()
	d.queue = append(d.queue, item)
	if d.draining {
		d.mu.Unlock()
		select {
		case <-item.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.draining = true
	d.mu.Unlock()

	d.drain()
	return nil
}

// submit enqueues the payload without waiting for it to be processed,
// starting a background drain when none is running. This is the entry point
// to use from inside a handler callback, where waiting would deadlock the
// drain loop.
func (d *dispatcher) submit(payload *WebhookPayload) {
	item := &queueItem{ctx: context.Background(), payload: payload, done: make(chan struct{})}

	d.mu.Lock()
	d.queue = append(d.queue, item)
	if !d.draining {
		d.draining = true
		go d.drain()
	}
	d.mu.Unlock()
}

// drain processes queued payloads one at a time until the queue is empty.
// It is never entered twice concurrently: submitters that find a drain in
// flight only enqueue.
func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			return
		}
		item := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.processItem(item.ctx, item.payload)
		close(item.done)
	}
}

// processItem routes one payload to at most one handler. Malformed payloads
// and payloads for another phone number are dropped without error.
func (d *dispatcher) processItem(ctx context.Context, payload *WebhookPayload) {
	value := firstValue(payload)
	if value == nil {
		d.logger.Debug("dropping payload without message value")
		return
	}

	if value.Metadata.PhoneNumberID != d.numberID {
		d.logger.Debug("dropping payload for another phone number",
			zap.String("phone_number_id", value.Metadata.PhoneNumberID))
		return
	}

	if len(value.Messages) == 0 {
		return
	}
	msg := &value.Messages[0]

	if d.markAsRead {
		// Read receipts are best-effort and must never abort routing.
		if err := d.client.transport.MarkAsRead(ctx, msg.ID); err != nil {
			d.logger.Debug("mark as read failed", zap.Error(err))
		}
	}

	sender := msg.From
	matched, data, fromNextStep := d.selectHandler(sender, msg)
	if matched == nil {
		return
	}

	upd := &Update{
		client:     d.client,
		Value:      value,
		Message:    msg,
		Sender:     sender,
		SenderName: senderName(value),
		MessageID:  msg.ID,
		Extracted:  data,
	}
	if matched.wantsContext {
		upd.Conv = d.store.Context(sender)
	}

	d.invoke(ctx, matched, upd)

	// The override is strictly single-use: running either of its handlers
	// consumes it.
	if fromNextStep {
		d.clearNextStep(sender)
	}
}

// selectHandler walks the candidate list in order and returns the first
// handler whose kind and filter match, its extracted data, and whether it
// came from the sender's next-step override. Persistent handlers are always
// considered first, in registration order; then either the override's
// handlers (fallback before primary) or the regular registered handlers.
func (d *dispatcher) selectHandler(sender string, msg *Message) (*Handler, Extracted, bool) {
	d.handlerMu.RLock()
	handlers := d.handlers
	override := d.nextSteps[sender]
	d.handlerMu.RUnlock()

	for _, h := range handlers {
		if !h.persistent {
			continue
		}
		if data, ok := handlerMatch(h, msg); ok {
			return h, data, false
		}
	}

	if override != nil {
		if override.fallback != nil {
			if data, ok := handlerMatch(override.fallback, msg); ok {
				return override.fallback, data, true
			}
		}
		if data, ok := handlerMatch(override.primary, msg); ok {
			return override.primary, data, true
		}
		return nil, Extracted{}, false
	}

	for _, h := range handlers {
		if h.persistent {
			continue
		}
		if data, ok := handlerMatch(h, msg); ok {
			return h, data, false
		}
	}
	return nil, Extracted{}, false
}

// handlerMatch applies the kind and filter checks, returning the extracted
// data when the handler should run.
func handlerMatch(h *Handler, msg *Message) (Extracted, bool) {
	if h.kind != msg.Type {
		return Extracted{}, false
	}
	data := h.extract(h, msg)
	if !h.filterCheck(data.MessageText) {
		return Extracted{}, false
	}
	return data, true
}

// invoke runs the handler callback behind the dispatch error boundary: a
// failing or panicking callback is reported and the queue keeps draining.
func (d *dispatcher) invoke(ctx context.Context, h *Handler, upd *Update) {
	defer func() {
		if r := recover(); r != nil {
			d.reportError(upd, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := h.callback(ctx, upd); err != nil {
		d.reportError(upd, err)
	}
}

func (d *dispatcher) reportError(upd *Update, err error) {
	d.logger.Error("handler callback failed",
		zap.String("sender", upd.Sender),
		zap.String("message_id", upd.MessageID),
		zap.Error(err))
	if d.onError != nil {
		d.onError(upd, err)
	}
}

// firstValue digs out entry[0].changes[0].value, or nil when the payload
// does not have that shape. Only the first message of the first change of
// the first entry is ever processed.
func firstValue(payload *WebhookPayload) *WebhookValue {
	if payload == nil || len(payload.Entry) == 0 {
		return nil
	}
	changes := payload.Entry[0].Changes
	if len(changes) == 0 {
		return nil
	}
	return &changes[0].Value
}

func senderName(value *WebhookValue) string {
	if len(value.Contacts) == 0 {
		return ""
	}
	return value.Contacts[0].Profile.Name
}
