package notify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"aegis/internal/contacts/models"
	"aegis/internal/location"
	"aegis/internal/notify"
	"aegis/internal/notify/mocks"
	id "aegis/pkg/domain"
)

type NotifySuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	sms    *mocks.MockSMSGateway
	email  *mocks.MockEmailSender
	sharer *mocks.MockSharer
	local  *mocks.MockLocalNotifier
}

func TestNotifySuite(t *testing.T) {
	suite.Run(t, new(NotifySuite))
}

func (s *NotifySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sms = mocks.NewMockSMSGateway(s.ctrl)
	s.email = mocks.NewMockEmailSender(s.ctrl)
	s.sharer = mocks.NewMockSharer(s.ctrl)
	s.local = mocks.NewMockLocalNotifier(s.ctrl)
}

func (s *NotifySuite) newService(opts ...notify.Option) *notify.Service {
	opts = append([]notify.Option{
		notify.WithSharer(s.sharer),
		notify.WithLocalNotifier(s.local),
	}, opts...)
	return notify.New(s.sms, s.email, opts...)
}

func contact(name, phone, email string) *models.TrustedContact {
	return &models.TrustedContact{
		ID:    id.NewContactID(),
		Name:  name,
		Phone: phone,
		Email: email,
	}
}

func (s *NotifySuite) TestSendSOSAlert() {
	ctx := context.Background()

	s.Run("sms delivers first for reachable contacts", func() {
		contacts := []*models.TrustedContact{
			contact("Ana", "+15550101", "ana@example.com"),
			contact("Ben", "+15550102", ""),
		}
		s.sms.EXPECT().SendSMS(gomock.Any(), "+15550101", gomock.Any()).Return(nil)
		s.sms.EXPECT().SendSMS(gomock.Any(), "+15550102", gomock.Any()).Return(nil)
		s.local.EXPECT().Notify(gomock.Any(), "SOS Alert Sent", gomock.Any()).Return(nil)

		summary, err := s.newService().SendSOSAlert(ctx, contacts, notify.Alert{})
		s.Require().NoError(err)
		s.Equal(2, summary.TotalContacts)
		s.Equal(2, summary.SuccessfulAlerts)
		s.False(summary.AlertID.IsNil())
		for _, result := range summary.PerContact {
			s.True(result.Success)
			s.Equal(notify.ChannelSMS, result.ChannelUsed)
		}
	})

	s.Run("email is the fallback when sms fails", func() {
		contacts := []*models.TrustedContact{contact("Ana", "+15550101", "ana@example.com")}
		s.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("gateway down"))
		s.email.EXPECT().SendEmail(gomock.Any(), "ana@example.com", "Emergency SOS Alert", gomock.Any()).Return(nil)
		s.local.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		summary, err := s.newService().SendSOSAlert(ctx, contacts, notify.Alert{})
		s.Require().NoError(err)
		s.Equal(1, summary.SuccessfulAlerts)
		s.Equal(notify.ChannelEmail, summary.PerContact[0].ChannelUsed)
	})

	s.Run("share is the last resort", func() {
		contacts := []*models.TrustedContact{contact("Cleo", "", "")}
		s.sharer.EXPECT().Share(gomock.Any(), "Cleo", gomock.Any()).Return(nil)
		s.local.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		summary, err := s.newService().SendSOSAlert(ctx, contacts, notify.Alert{})
		s.Require().NoError(err)
		s.Equal(notify.ChannelShare, summary.PerContact[0].ChannelUsed)
	})

	s.Run("partial failure is a normal outcome", func() {
		contacts := []*models.TrustedContact{
			contact("Ana", "+15550101", ""),
			contact("Ben", "+15550102", ""),
		}
		s.sms.EXPECT().SendSMS(gomock.Any(), "+15550101", gomock.Any()).Return(nil)
		s.sms.EXPECT().SendSMS(gomock.Any(), "+15550102", gomock.Any()).Return(errors.New("number unreachable"))
		s.sharer.EXPECT().Share(gomock.Any(), "Ben", gomock.Any()).Return(errors.New("no subscribers"))
		s.local.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		summary, err := s.newService().SendSOSAlert(ctx, contacts, notify.Alert{})
		s.Require().NoError(err)
		s.Equal(2, summary.TotalContacts)
		s.Equal(1, summary.SuccessfulAlerts)

		var failed *notify.DeliveryResult
		for i := range summary.PerContact {
			if !summary.PerContact[i].Success {
				failed = &summary.PerContact[i]
			}
		}
		s.Require().NotNil(failed)
		s.Equal("Ben", failed.ContactName)
		s.Equal(notify.ChannelNone, failed.ChannelUsed)
		s.Contains(failed.Error, "no subscribers")
	})

	s.Run("empty roster yields a zero summary without error", func() {
		s.local.EXPECT().Notify(gomock.Any(), "SOS Alert Sent", "Alert sent to 0 of 0 contacts").Return(nil)

		summary, err := s.newService().SendSOSAlert(ctx, nil, notify.Alert{})
		s.Require().NoError(err)
		s.Equal(0, summary.TotalContacts)
		s.Equal(0, summary.SuccessfulAlerts)
		s.Empty(summary.PerContact)
	})

	s.Run("slow gateway is cut off at the per-contact timeout", func() {
		contacts := []*models.TrustedContact{contact("Ana", "+15550101", "")}
		s.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _, _ string) error {
				<-ctx.Done()
				return ctx.Err()
			})
		s.sharer.EXPECT().Share(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _, _ string) error {
				return ctx.Err()
			})
		s.local.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		svc := s.newService(notify.WithPerContactTimeout(20 * time.Millisecond))
		summary, err := svc.SendSOSAlert(ctx, contacts, notify.Alert{})
		s.Require().NoError(err)
		s.False(summary.PerContact[0].Success)
		s.Contains(summary.PerContact[0].Error, "timed out")
	})

	s.Run("local notification failure does not affect the summary", func() {
		contacts := []*models.TrustedContact{contact("Ana", "+15550101", "")}
		s.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.local.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("display unavailable"))

		summary, err := s.newService().SendSOSAlert(ctx, contacts, notify.Alert{})
		s.Require().NoError(err)
		s.Equal(1, summary.SuccessfulAlerts)
	})
}

func (s *NotifySuite) TestSendIncidentUpdate() {
	ctx := context.Background()

	s.Run("update text carries the incident facts", func() {
		incidentID := id.NewIncidentID()
		contacts := []*models.TrustedContact{contact("Ana", "+15550101", "")}

		var captured string
		s.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _, message string) error {
				captured = message
				return nil
			})
		s.local.EXPECT().Notify(gomock.Any(), "Incident Update Sent", gomock.Any()).Return(nil)

		summary, err := s.newService().SendIncidentUpdate(ctx, contacts, incidentID, "completed", "made it home")
		s.Require().NoError(err)
		s.Equal(1, summary.SuccessfulAlerts)
		s.Contains(captured, incidentID.String())
		s.Contains(captured, "COMPLETED")
		s.Contains(captured, "made it home")
	})
}

func TestBuildSOSMessage(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("with location", func(t *testing.T) {
		msg := notify.BuildSOSMessage(at, notify.Alert{
			Location: &location.Position{Lat: 37.7749, Lon: -122.4194},
			Kind:     "sos",
		})
		if !strings.Contains(msg, "Location: 37.7749, -122.4194") {
			t.Errorf("message missing coordinates: %q", msg)
		}
		if !strings.Contains(msg, "https://maps.google.com/?q=37.774900,-122.419400") {
			t.Errorf("message missing maps link: %q", msg)
		}
	})

	t.Run("without location", func(t *testing.T) {
		msg := notify.BuildSOSMessage(at, notify.Alert{})
		if !strings.Contains(msg, "Location: Unknown") {
			t.Errorf("message should mark location unknown: %q", msg)
		}
		if strings.Contains(msg, "maps.google.com") {
			t.Errorf("message should not carry a maps link: %q", msg)
		}
	})
}
