// Package wabot is a client library for building WhatsApp Cloud API bots.
//
// A Client receives webhook payloads pushed by Meta, routes each inbound
// message to exactly one registered handler, keeps short-lived per-user
// conversation state, and offers convenience calls for replying through the
// Cloud API.
//
// # Quick start
//
//	bot, err := wabot.New(wabot.Config{
//	    NumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
//	    Token:      os.Getenv("WHATSAPP_TOKEN"),
//	    MarkAsRead: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bot.OnMessage(func(ctx context.Context, upd *wabot.Update) error {
//	    return upd.Reply(ctx, "you said: "+upd.MessageText)
//	}, wabot.WithRegex(regexp.MustCompile(`(?i)^hello`)))
//
//	// In the webhook endpoint:
//	_ = bot.ProcessUpdateJSON(r.Context(), body)
//
// # Dispatch model
//
// Payloads are processed strictly in submission order through a single FIFO
// queue with a non-reentrant drain: the goroutine that submits while no
// drain is running becomes the drainer, and every submitter returns only
// after its payload has been fully processed. Within one payload, candidate
// handlers are walked in a fixed order (persistent handlers, then the
// sender's next-step override or the regular handlers) and the first handler
// whose kind and filter match is the only one that runs.
//
// Malformed payloads, payloads addressed to another phone number and read
// receipt failures are dropped without error. Handler callback failures are
// reported through the error boundary (see WithErrorHandler) and never stop
// the queue.
//
// # Conversation state
//
// Each sender gets a lazily created key/value bag in the client's
// ContextStore; handlers built with WithUserContext receive a handle on it
// through Update.Conv. SetNextStep installs a single-use override that
// captures the sender's next message, which is how multi-step conversation
// flows are built.
package wabot
