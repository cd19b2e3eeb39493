package email

import "context"

// Provider sends HTML email to housemates.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider drops outgoing mail. It is the default when no SMTP host is
// configured, which keeps local development from needing a mail server.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
