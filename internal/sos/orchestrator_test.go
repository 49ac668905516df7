package sos_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aegis/internal/capture"
	contactmodels "aegis/internal/contacts/models"
	"aegis/internal/events"
	incidentservice "aegis/internal/incident/service"
	incidentstore "aegis/internal/incident/store"
	"aegis/internal/location"
	"aegis/internal/notify"
	recordingservice "aegis/internal/recording/service"
	recordingstore "aegis/internal/recording/store"
	"aegis/internal/sos"
	usermodels "aegis/internal/user/models"
	userservice "aegis/internal/user/service"
	userstore "aegis/internal/user/store"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
)

// fakeRecorder stands in for a capture controller. The auto-stop callback is
// fired manually from tests to exercise the race.
type fakeRecorder struct {
	mu         sync.Mutex
	startErr   error
	recording  bool
	recID      id.RecordingID
	duration   time.Duration
	onAutoStop func(capture.Artifact)
}

func (f *fakeRecorder) Start(_ context.Context, kind capture.Kind) (id.RecordingID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return id.RecordingID{}, f.startErr
	}
	f.recording = true
	f.recID = id.NewRecordingID()
	return f.recID, nil
}

func (f *fakeRecorder) Stop() (*capture.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording {
		return nil, derrors.New(derrors.CodeInvalidInput, "no active recording to stop")
	}
	f.recording = false
	return f.artifactLocked(), nil
}

func (f *fakeRecorder) Cleanup() {}

// fireAutoStop mimics the max-duration timer: the capture stops itself, then
// hands the artifact to the callback.
func (f *fakeRecorder) fireAutoStop() bool {
	f.mu.Lock()
	if !f.recording {
		f.mu.Unlock()
		return false
	}
	f.recording = false
	artifact := f.artifactLocked()
	callback := f.onAutoStop
	f.mu.Unlock()
	callback(*artifact)
	return true
}

func (f *fakeRecorder) artifactLocked() *capture.Artifact {
	return &capture.Artifact{
		RecordingID: f.recID,
		Payload:     []byte("opus-frames"),
		MimeKind:    "audio/webm;codecs=opus",
		Duration:    f.duration,
		SizeBytes:   11,
		Type:        capture.KindAudio,
	}
}

// fakeAcquirer returns a scripted position or error.
type fakeAcquirer struct {
	pos *location.Position
	err error
}

func (f *fakeAcquirer) Acquire(context.Context, time.Duration) (*location.Position, error) {
	return f.pos, f.err
}

func (f *fakeAcquirer) Close() {}

// fakeAlerter records what it was asked to send.
type fakeAlerter struct {
	mu      sync.Mutex
	calls   int
	last    notify.Alert
	summary *notify.AlertSummary
}

func (f *fakeAlerter) SendSOSAlert(_ context.Context, contacts []*contactmodels.TrustedContact, alert notify.Alert) (*notify.AlertSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = alert
	if f.summary != nil {
		return f.summary, nil
	}
	return &notify.AlertSummary{
		AlertID:          id.NewAlertID(),
		TotalContacts:    len(contacts),
		SuccessfulAlerts: len(contacts),
	}, nil
}

func (f *fakeAlerter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type rosterFunc func(ctx context.Context, userID id.UserID) ([]*contactmodels.TrustedContact, error)

func (f rosterFunc) List(ctx context.Context, userID id.UserID) ([]*contactmodels.TrustedContact, error) {
	return f(ctx, userID)
}

type OrchestratorSuite struct {
	suite.Suite
	userID     id.UserID
	recorder   *fakeRecorder
	acquirer   *fakeAcquirer
	alerter    *fakeAlerter
	incidents  *incidentservice.Service
	recordings *recordingservice.Service
	users      *userservice.Service
	publisher  *events.MemoryPublisher
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.userID = id.UserID("user-1")
	s.recorder = &fakeRecorder{duration: 65 * time.Second}
	s.acquirer = &fakeAcquirer{pos: &location.Position{Lat: 37.7749, Lon: -122.4194, Timestamp: time.Now()}}
	s.alerter = &fakeAlerter{}
	s.publisher = events.NewMemory()

	incidents, err := incidentservice.New(incidentstore.NewMemory())
	s.Require().NoError(err)
	s.incidents = incidents

	recordings, err := recordingservice.New(recordingstore.NewMemory())
	s.Require().NoError(err)
	s.recordings = recordings

	users, err := userservice.New(userstore.NewMemory())
	s.Require().NoError(err)
	s.users = users
}

// SetupSubTest gives every subtest fresh stores and a fresh recorder so an
// active incident from one scenario cannot leak into the next.
func (s *OrchestratorSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *OrchestratorSuite) roster() rosterFunc {
	return func(context.Context, id.UserID) ([]*contactmodels.TrustedContact, error) {
		return []*contactmodels.TrustedContact{
			{ID: id.NewContactID(), Name: "Ana", Phone: "+15550101"},
			{ID: id.NewContactID(), Name: "Ben", Email: "ben@example.com"},
		}, nil
	}
}

func (s *OrchestratorSuite) newOrchestrator(opts ...sos.Option) *sos.Orchestrator {
	recorders := func(_ id.UserID, onAutoStop func(capture.Artifact)) (sos.Recorder, error) {
		s.recorder.onAutoStop = onAutoStop
		return s.recorder, nil
	}
	acquirers := func(id.UserID) (sos.LocationAcquirer, error) {
		return s.acquirer, nil
	}
	opts = append([]sos.Option{sos.WithPublisher(s.publisher)}, opts...)
	o, err := sos.New(recorders, acquirers, s.roster(), s.alerter, s.incidents, opts...)
	s.Require().NoError(err)
	return o
}

func (s *OrchestratorSuite) eventTypes() []events.Type {
	var out []events.Type
	for _, event := range s.publisher.EventsForUser(s.userID) {
		out = append(out, event.Type)
	}
	return out
}

func (s *OrchestratorSuite) TestRaiseSOS() {
	ctx := context.Background()

	s.Run("full trigger sequence", func() {
		o := s.newOrchestrator()

		result, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{Device: "Chrome 125; Android; mobile"})
		s.Require().NoError(err)
		s.Equal(sos.StateRecordingActive, o.Status(s.userID))
		s.False(result.Recording.IsNil())
		s.Equal(2, result.Alerts.TotalContacts)
		s.Require().NotNil(result.Incident.Location)
		s.InDelta(37.7749, result.Incident.Location.Lat, 1e-9)
		s.Equal("Chrome 125; Android; mobile", result.Incident.Device)

		active, err := s.incidents.ActiveIncident(ctx, s.userID)
		s.Require().NoError(err)
		s.Equal(result.Incident.ID, active.ID)

		s.Equal([]events.Type{events.TypeDeliverySummary, events.TypeSOSRaised}, s.eventTypes())
	})

	s.Run("location failure does not block the raise", func() {
		s.acquirer.pos = nil
		s.acquirer.err = derrors.New(derrors.CodeTimeout, "location request timed out")
		o := s.newOrchestrator()

		result, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)
		s.Nil(result.Location)
		s.Nil(result.Incident.Location)
		s.Equal(1, s.alerter.callCount())
	})

	s.Run("roster failure alerts nobody but the raise continues", func() {
		roster := rosterFunc(func(context.Context, id.UserID) ([]*contactmodels.TrustedContact, error) {
			return nil, errors.New("store down")
		})
		recorders := func(_ id.UserID, onAutoStop func(capture.Artifact)) (sos.Recorder, error) {
			s.recorder.onAutoStop = onAutoStop
			return s.recorder, nil
		}
		acquirers := func(id.UserID) (sos.LocationAcquirer, error) { return s.acquirer, nil }
		o, err := sos.New(recorders, acquirers, roster, s.alerter, s.incidents)
		s.Require().NoError(err)

		result, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)
		s.Equal(0, result.Alerts.TotalContacts)
		s.Equal(sos.StateRecordingActive, o.Status(s.userID))
	})

	s.Run("second raise while active is rejected", func() {
		o := s.newOrchestrator()
		_, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)

		_, err = o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.True(derrors.Is(err, derrors.CodeConflict))
		s.Equal(sos.StateRecordingActive, o.Status(s.userID))
	})

	s.Run("capture failure rolls back without retracting the alert", func() {
		s.recorder.startErr = capture.ErrPermissionDenied
		o := s.newOrchestrator()

		_, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.True(derrors.Is(err, derrors.CodeUnavailable))
		s.Equal(sos.StateReady, o.Status(s.userID))
		// The alert already went out and stays out.
		s.Equal(1, s.alerter.callCount())
		// No incident record was opened.
		_, err = s.incidents.ActiveIncident(ctx, s.userID)
		s.True(derrors.Is(err, derrors.CodeNotFound))
	})
}

func (s *OrchestratorSuite) TestEntitlementGate() {
	ctx := context.Background()

	s.Run("free tier is limited to one lifetime incident", func() {
		user, err := s.users.Register(ctx, "free@example.com", "correct horse", "")
		s.Require().NoError(err)
		policy := sos.FreeTierPolicy(s.users, s.incidents, 1)
		o := s.newOrchestrator(sos.WithEntitlementPolicy(policy))

		// First episode is allowed.
		_, err = o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.Require().NoError(err)
		_, err = o.StopSOS(ctx, user.ID)
		s.Require().NoError(err)

		// Second trigger hits the quota.
		_, err = o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.True(derrors.Is(err, derrors.CodeUpgradeRequired))
		s.Equal(sos.StateReady, o.Status(user.ID))
		_, err = s.incidents.ActiveIncident(ctx, user.ID)
		s.True(derrors.Is(err, derrors.CodeNotFound))
	})

	s.Run("premium passes the gate and an upgrade takes effect immediately", func() {
		user, err := s.users.Register(ctx, "soon-premium@example.com", "correct horse", "")
		s.Require().NoError(err)
		policy := sos.FreeTierPolicy(s.users, s.incidents, 1)
		o := s.newOrchestrator(sos.WithEntitlementPolicy(policy))

		_, err = o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.Require().NoError(err)
		_, err = o.StopSOS(ctx, user.ID)
		s.Require().NoError(err)

		_, err = o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.True(derrors.Is(err, derrors.CodeUpgradeRequired))

		// The policy is re-evaluated per call, so upgrading unblocks the
		// very next trigger.
		_, err = s.users.SetPremium(ctx, user.ID, true)
		s.Require().NoError(err)
		_, err = o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.NoError(err)
	})
}

func (s *OrchestratorSuite) TestStopSOS() {
	ctx := context.Background()

	s.Run("stop completes the incident with the recording ref", func() {
		o := s.newOrchestrator()
		raised, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)

		result, err := o.StopSOS(ctx, s.userID)
		s.Require().NoError(err)
		s.Equal(sos.StateReady, o.Status(s.userID))
		s.Equal(raised.Incident.ID, result.Incident.ID)
		s.Require().NotNil(result.Incident.EndTime)
		s.Require().NotNil(result.Incident.RecordingRef)
		s.Equal(result.Artifact.RecordingID, *result.Incident.RecordingRef)
		s.Equal(65*time.Second, result.Artifact.Duration)
		s.False(result.Archived)

		s.Contains(s.eventTypes(), events.TypeRecordingStopped)
		s.Contains(s.eventTypes(), events.TypeIncidentCompleted)
	})

	s.Run("stop without an active episode fails", func() {
		o := s.newOrchestrator()
		_, err := o.StopSOS(ctx, s.userID)
		s.True(derrors.Is(err, derrors.CodeConflict))
	})

	s.Run("premium users get the artifact archived", func() {
		user := s.premiumUser(ctx)
		o := s.newOrchestrator(sos.WithArchiver(s.recordings, sos.PremiumArchivePolicy(s.users)))

		_, err := o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.Require().NoError(err)
		result, err := o.StopSOS(ctx, user.ID)
		s.Require().NoError(err)
		s.True(result.Archived)

		archived, err := s.recordings.Get(ctx, user.ID, result.Artifact.RecordingID)
		s.Require().NoError(err)
		s.Equal([]byte("opus-frames"), archived.Payload)
	})

	s.Run("free users get no archive but the incident still closes", func() {
		o := s.newOrchestrator(sos.WithArchiver(s.recordings, sos.PremiumArchivePolicy(s.users)))
		user, err := s.users.Register(ctx, "free-stop@example.com", "correct horse", "")
		s.Require().NoError(err)

		_, err = o.RaiseSOS(ctx, user.ID, sos.RaiseOptions{})
		s.Require().NoError(err)
		result, err := o.StopSOS(ctx, user.ID)
		s.Require().NoError(err)
		s.False(result.Archived)

		recordings, err := s.recordings.List(ctx, user.ID)
		s.Require().NoError(err)
		s.Empty(recordings)
	})
}

func (s *OrchestratorSuite) TestAutoStop() {
	ctx := context.Background()

	s.Run("auto-stop closes the incident and a later stop no-ops", func() {
		o := s.newOrchestrator()
		raised, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)

		s.Require().True(s.recorder.fireAutoStop())
		s.Equal(sos.StateReady, o.Status(s.userID))

		completed, err := s.incidents.List(ctx, s.userID)
		s.Require().NoError(err)
		s.Require().Len(completed, 1)
		s.Equal(raised.Incident.ID, completed[0].ID)
		s.NotNil(completed[0].EndTime)

		// The explicit stop lost the race.
		_, err = o.StopSOS(ctx, s.userID)
		s.True(derrors.Is(err, derrors.CodeConflict))
	})

	s.Run("explicit stop wins and the timer no-ops", func() {
		o := s.newOrchestrator()
		_, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)

		_, err = o.StopSOS(ctx, s.userID)
		s.Require().NoError(err)

		// The timer fires after the fact and finds nothing to stop.
		s.False(s.recorder.fireAutoStop())
		s.Equal(sos.StateReady, o.Status(s.userID))

		completed, err := s.incidents.List(ctx, s.userID)
		s.Require().NoError(err)
		s.Require().Len(completed, 1)
	})

	s.Run("auto-stop event is marked", func() {
		o := s.newOrchestrator()
		_, err := o.RaiseSOS(ctx, s.userID, sos.RaiseOptions{})
		s.Require().NoError(err)
		s.Require().True(s.recorder.fireAutoStop())

		var found bool
		for _, event := range s.publisher.EventsForUser(s.userID) {
			if event.Type == events.TypeRecordingStopped {
				found = true
				s.True(event.AutoStop)
			}
		}
		s.True(found)
	})
}

func (s *OrchestratorSuite) premiumUser(ctx context.Context) *usermodels.User {
	user, err := s.users.Register(ctx, "premium@example.com", "correct horse", "")
	s.Require().NoError(err)
	user, err = s.users.SetPremium(ctx, user.ID, true)
	s.Require().NoError(err)
	return user
}
