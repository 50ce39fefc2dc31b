package email

import (
	"context"
	"log"
)

// Sender delivers a single HTML email. Implementations must be safe for
// concurrent use; the webhook handler treats every failure as non-fatal.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// disabledSender is used when no delivery credential is configured. Sends
// become logged skips so a missing key never fails a webhook.
type disabledSender struct{}

func (disabledSender) Send(ctx context.Context, to, subject, html string) error {
	log.Printf("[email] delivery disabled, skipping send to=%s subject=%q", to, subject)
	return nil
}

func Disabled() Sender {
	return disabledSender{}
}
