package email

import (
	"context"

	"github.com/resend/resend-go/v2"
)

type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender returns a disabled sender when the API key is absent.
func NewResendSender(apiKey, from string) Sender {
	if apiKey == "" {
		return Disabled()
	}
	if from == "" {
		from = "Coursepay <onboarding@resend.dev>"
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, html string) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	return err
}
