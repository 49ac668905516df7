package notify

import "context"

//go:generate mockgen -source=senders.go -destination=mocks/mocks.go -package=mocks

// SMSGateway delivers a text message to a phone number.
type SMSGateway interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// EmailSender delivers a message to an email address.
type EmailSender interface {
	SendEmail(ctx context.Context, address, subject, body string) error
}

// Sharer is the last-resort channel for contacts reachable by neither SMS nor
// email, e.g. a realtime subscription or the platform share sheet.
type Sharer interface {
	Share(ctx context.Context, contactName, message string) error
}

// LocalNotifier surfaces a notification to the user who raised the SOS,
// confirming the fan-out happened regardless of per-contact outcomes.
type LocalNotifier interface {
	Notify(ctx context.Context, title, body string) error
}

// SharerFunc adapts a function to the Sharer interface.
type SharerFunc func(ctx context.Context, contactName, message string) error

func (f SharerFunc) Share(ctx context.Context, contactName, message string) error {
	return f(ctx, contactName, message)
}

// LocalNotifierFunc adapts a function to the LocalNotifier interface.
type LocalNotifierFunc func(ctx context.Context, title, body string) error

func (f LocalNotifierFunc) Notify(ctx context.Context, title, body string) error {
	return f(ctx, title, body)
}
