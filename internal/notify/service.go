package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"aegis/internal/contacts/models"
	"aegis/internal/platform/metrics"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
)

// DefaultPerContactTimeout bounds each contact's delivery attempt so one slow
// gateway cannot stall the whole fan-out.
const DefaultPerContactTimeout = 5 * time.Second

const (
	sosEmailSubject    = "Emergency SOS Alert"
	updateEmailSubject = "Incident Update"
)

// Service fans an alert out to every trusted contact concurrently. Channels
// are tried per contact in fixed priority: SMS, then email, then share. The
// first success wins; a contact fails only when every channel fails.
//
// The fan-out itself never fails: partial delivery is a normal outcome and
// the caller reads the summary, not an error.
type Service struct {
	sms    SMSGateway
	email  EmailSender
	sharer Sharer
	local  LocalNotifier

	perContactTimeout time.Duration
	metrics           *metrics.Metrics
	logger            *slog.Logger
	clock             func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPerContactTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.perContactTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSharer wires the last-resort delivery channel.
func WithSharer(sharer Sharer) Option {
	return func(s *Service) {
		s.sharer = sharer
	}
}

// WithLocalNotifier wires the channel that confirms the fan-out to the user
// who raised the SOS.
func WithLocalNotifier(local LocalNotifier) Option {
	return func(s *Service) {
		s.local = local
	}
}

// New constructs the notifier. SMS and email senders may be nil when the
// corresponding gateway is not configured; those channels are skipped.
func New(sms SMSGateway, email EmailSender, opts ...Option) *Service {
	s := &Service{
		sms:               sms,
		email:             email,
		perContactTimeout: DefaultPerContactTimeout,
		logger:            slog.New(slog.DiscardHandler),
		clock:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendSOSAlert delivers the emergency message to every contact and returns
// the aggregate. An empty roster yields a zero summary, not an error. The
// local confirmation notification fires regardless of per-contact outcomes.
func (s *Service) SendSOSAlert(ctx context.Context, contacts []*models.TrustedContact, alert Alert) (*AlertSummary, error) {
	sentAt := s.clock()
	summary := s.fanOut(ctx, contacts, BuildSOSMessage(sentAt, alert), sosEmailSubject, sentAt)

	s.notifyLocal(ctx, "SOS Alert Sent",
		fmt.Sprintf("Alert sent to %d of %d contacts", summary.SuccessfulAlerts, summary.TotalContacts))

	s.logger.InfoContext(ctx, "sos alert fan-out complete",
		"alert_id", summary.AlertID,
		"total_contacts", summary.TotalContacts,
		"successful", summary.SuccessfulAlerts,
	)
	return summary, nil
}

// SendIncidentUpdate delivers a status update for an existing incident to the
// same roster, with the same delivery semantics as the SOS alert.
func (s *Service) SendIncidentUpdate(ctx context.Context, contacts []*models.TrustedContact, incidentID id.IncidentID, status, notes string) (*AlertSummary, error) {
	sentAt := s.clock()
	summary := s.fanOut(ctx, contacts, BuildUpdateMessage(sentAt, incidentID, status, notes), updateEmailSubject, sentAt)

	s.notifyLocal(ctx, "Incident Update Sent",
		fmt.Sprintf("Status update sent to %d contacts", summary.SuccessfulAlerts))

	return summary, nil
}

func (s *Service) fanOut(ctx context.Context, contacts []*models.TrustedContact, message, subject string, sentAt time.Time) *AlertSummary {
	summary := &AlertSummary{
		AlertID:       id.NewAlertID(),
		SentAt:        sentAt,
		PerContact:    make([]DeliveryResult, len(contacts)),
		TotalContacts: len(contacts),
	}

	var g errgroup.Group
	for i, contact := range contacts {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.perContactTimeout)
			defer cancel()
			summary.PerContact[i] = s.deliver(cctx, contact, message, subject)
			return nil
		})
	}
	// Workers never return errors; a contact's failure lands in its slot.
	_ = g.Wait()

	for _, result := range summary.PerContact {
		if result.Success {
			summary.SuccessfulAlerts++
			if s.metrics != nil {
				s.metrics.IncrementAlertDelivered(string(result.ChannelUsed))
			}
		} else if s.metrics != nil {
			s.metrics.IncrementDeliveryFailure()
		}
	}
	return summary
}

// deliver tries one contact's channels in priority order and reports the
// first to succeed. Timeout errors surface as the timeout code so callers can
// tell a slow gateway from a rejecting one.
func (s *Service) deliver(ctx context.Context, contact *models.TrustedContact, message, subject string) DeliveryResult {
	result := DeliveryResult{
		ContactID:   contact.ID,
		ContactName: contact.Name,
		ChannelUsed: ChannelNone,
	}

	var lastErr error
	if s.sms != nil && contact.Phone != "" {
		err := s.sms.SendSMS(ctx, contact.Phone, message)
		if err == nil {
			result.Success = true
			result.ChannelUsed = ChannelSMS
			return result
		}
		lastErr = err
	}
	if s.email != nil && contact.Email != "" {
		err := s.email.SendEmail(ctx, contact.Email, subject, message)
		if err == nil {
			result.Success = true
			result.ChannelUsed = ChannelEmail
			return result
		}
		lastErr = err
	}
	if s.sharer != nil {
		err := s.sharer.Share(ctx, contact.Name, message)
		if err == nil {
			result.Success = true
			result.ChannelUsed = ChannelShare
			return result
		}
		lastErr = err
	}

	switch {
	case lastErr == nil:
		result.Error = "no reachable channel"
	case errors.Is(lastErr, context.DeadlineExceeded):
		result.Error = derrors.Wrap(lastErr, derrors.CodeTimeout, "delivery timed out").Error()
	default:
		result.Error = lastErr.Error()
	}

	s.logger.WarnContext(ctx, "alert delivery failed for contact",
		"contact_id", contact.ID,
		"error", result.Error,
	)
	return result
}

func (s *Service) notifyLocal(ctx context.Context, title, body string) {
	if s.local == nil {
		return
	}
	if err := s.local.Notify(ctx, title, body); err != nil {
		s.logger.WarnContext(ctx, "local notification failed", "error", err)
	}
}
