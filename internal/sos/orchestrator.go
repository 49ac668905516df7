package sos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aegis/internal/capture"
	contactmodels "aegis/internal/contacts/models"
	"aegis/internal/events"
	incidentmodels "aegis/internal/incident/models"
	incidentservice "aegis/internal/incident/service"
	"aegis/internal/location"
	"aegis/internal/notify"
	"aegis/internal/platform/metrics"
	recordingmodels "aegis/internal/recording/models"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
)

// State is the orchestrator's per-user lifecycle state.
type State string

const (
	StateReady           State = "ready"
	StateAlerting        State = "alerting"
	StateRecordingActive State = "recording_active"
)

// LocationAcquirer is the per-user location boundary.
type LocationAcquirer interface {
	Acquire(ctx context.Context, maxCacheAge time.Duration) (*location.Position, error)
	Close()
}

// Recorder is the per-user capture boundary.
type Recorder interface {
	Start(ctx context.Context, kind capture.Kind) (id.RecordingID, error)
	Stop() (*capture.Artifact, error)
	Cleanup()
}

// AcquirerFactory builds the location acquirer for a user session.
type AcquirerFactory func(userID id.UserID) (LocationAcquirer, error)

// RecorderFactory builds the capture controller for a user session, wiring
// the auto-stop callback so a max-duration stop closes the incident.
type RecorderFactory func(userID id.UserID, onAutoStop func(capture.Artifact)) (Recorder, error)

// ContactLister returns the user's trusted contact roster.
type ContactLister interface {
	List(ctx context.Context, userID id.UserID) ([]*contactmodels.TrustedContact, error)
}

// Alerter fans the SOS alert out to the roster.
type Alerter interface {
	SendSOSAlert(ctx context.Context, contacts []*contactmodels.TrustedContact, alert notify.Alert) (*notify.AlertSummary, error)
}

// IncidentLedger records the durable incident trail.
type IncidentLedger interface {
	Begin(ctx context.Context, userID id.UserID, params incidentservice.BeginParams) (*incidentmodels.Incident, error)
	Complete(ctx context.Context, userID id.UserID, incidentID id.IncidentID, recordingRef *id.RecordingID) (*incidentmodels.Incident, error)
}

// ArtifactArchiver persists stopped capture artifacts.
type ArtifactArchiver interface {
	Persist(ctx context.Context, userID id.UserID, incidentID *id.IncidentID, artifact capture.Artifact) (*recordingmodels.Recording, error)
}

// session is one user's live SOS state. Transitions happen under the
// orchestrator lock; the Alerting state reserves the session so concurrent
// raises collide on the state check, not on half-built resources.
type session struct {
	state       State
	incidentID  id.IncidentID
	recordingID id.RecordingID
	recorder    Recorder
	acquirer    LocationAcquirer
}

// Orchestrator drives the SOS lifecycle per user: entitlement gate, location
// snapshot, contact fan-out, capture, incident record, and teardown.
type Orchestrator struct {
	recorders RecorderFactory
	acquirers AcquirerFactory
	contacts  ContactLister
	alerter   Alerter
	incidents IncidentLedger

	archiver ArtifactArchiver
	archive  ArchivePolicy
	entitle  EntitlementPolicy

	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       func() time.Time
	maxCacheAge time.Duration

	mu       sync.Mutex
	sessions map[id.UserID]*session
	active   int
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithEntitlementPolicy replaces the raise gate.
func WithEntitlementPolicy(policy EntitlementPolicy) Option {
	return func(o *Orchestrator) {
		if policy != nil {
			o.entitle = policy
		}
	}
}

// WithArchiver wires artifact persistence behind the archive policy.
func WithArchiver(archiver ArtifactArchiver, policy ArchivePolicy) Option {
	return func(o *Orchestrator) {
		o.archiver = archiver
		o.archive = policy
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// WithMaxCacheAge sets the freshness window for cached position fallback.
func WithMaxCacheAge(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.maxCacheAge = d
		}
	}
}

func New(
	recorders RecorderFactory,
	acquirers AcquirerFactory,
	contacts ContactLister,
	alerter Alerter,
	incidents IncidentLedger,
	opts ...Option,
) (*Orchestrator, error) {
	if recorders == nil || acquirers == nil {
		return nil, errors.New("recorder and acquirer factories are required")
	}
	if contacts == nil || alerter == nil || incidents == nil {
		return nil, errors.New("contacts, alerter and incidents are required")
	}

	o := &Orchestrator{
		recorders:   recorders,
		acquirers:   acquirers,
		contacts:    contacts,
		alerter:     alerter,
		incidents:   incidents,
		entitle:     AllowAll(),
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("aegis/internal/sos"),
		clock:       time.Now,
		maxCacheAge: 5 * time.Minute,
		sessions:    make(map[id.UserID]*session),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RaiseOptions carries the trigger's request facts.
type RaiseOptions struct {
	Kind   capture.Kind
	Notes  string
	Device string
}

// RaiseResult is what the trigger gets back: the incident, the live
// recording, and how the fan-out went.
type RaiseResult struct {
	Incident  *incidentmodels.Incident
	Recording id.RecordingID
	Location  *location.Position
	Alerts    *notify.AlertSummary
}

// StopResult closes the loop on a raise.
type StopResult struct {
	Incident *incidentmodels.Incident
	Artifact *capture.Artifact
	Archived bool
}

// RaiseSOS runs the full trigger sequence. Location and notification failures
// are absorbed: a user in danger gets a recording and an incident record even
// when GPS and every contact channel are down. Only the entitlement gate and
// the capture start can veto the raise.
func (o *Orchestrator) RaiseSOS(ctx context.Context, userID id.UserID, opts RaiseOptions) (*RaiseResult, error) {
	ctx, span := o.tracer.Start(ctx, "sos.raise",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	if userID.IsNil() {
		return nil, derrors.New(derrors.CodeInvalidInput, "user id is required")
	}
	if opts.Kind == "" {
		opts.Kind = capture.KindAudio
	}

	o.mu.Lock()
	sess := o.sessionLocked(userID)
	if sess.state != StateReady {
		o.mu.Unlock()
		o.rejected("already_active")
		return nil, derrors.New(derrors.CodeConflict, "an sos is already active")
	}
	sess.state = StateAlerting
	o.mu.Unlock()

	result, err := o.raise(ctx, userID, sess, opts)
	if err != nil {
		o.mu.Lock()
		sess.state = StateReady
		o.mu.Unlock()
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("incident.id", result.Incident.ID.String()))
	return result, nil
}

func (o *Orchestrator) raise(ctx context.Context, userID id.UserID, sess *session, opts RaiseOptions) (*RaiseResult, error) {
	if err := o.entitle(ctx, userID); err != nil {
		if derrors.Is(err, derrors.CodeUpgradeRequired) {
			o.rejected("upgrade_required")
		}
		return nil, err
	}

	pos := o.snapshotLocation(ctx, userID, sess)
	summary := o.alertContacts(ctx, userID, pos, opts)

	recorder, err := o.recorderFor(userID, sess)
	if err != nil {
		o.rejected("recording_unavailable")
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "recording unavailable")
	}
	recID, err := recorder.Start(ctx, opts.Kind)
	if err != nil {
		o.rejected("recording_unavailable")
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "recording unavailable")
	}

	incident, err := o.incidents.Begin(ctx, userID, incidentservice.BeginParams{
		Location:     geoPoint(pos),
		RecordingRef: &recID,
		Device:       opts.Device,
	})
	if err != nil {
		// The alert went out but no incident can anchor the recording, so
		// the capture is discarded and the raise fails.
		if _, stopErr := recorder.Stop(); stopErr != nil {
			o.logger.ErrorContext(ctx, "failed to discard recording after begin failure", "error", stopErr)
		}
		return nil, err
	}

	o.mu.Lock()
	sess.state = StateRecordingActive
	sess.incidentID = incident.ID
	sess.recordingID = recID
	o.active++
	active := o.active
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.IncrementSOSRaised()
		o.metrics.SetActiveRecordings(active)
	}
	o.publish(ctx, events.Event{
		Type:        events.TypeSOSRaised,
		UserID:      userID,
		IncidentID:  incident.ID.String(),
		RecordingID: recID.String(),
	})

	o.logger.InfoContext(ctx, "sos raised",
		"user_id", userID,
		"incident_id", incident.ID,
		"recording_id", recID,
		"alerted", summary.SuccessfulAlerts,
		"has_location", pos != nil,
	)
	return &RaiseResult{
		Incident:  incident,
		Recording: recID,
		Location:  pos,
		Alerts:    summary,
	}, nil
}

// StopSOS ends the active episode: stop capture, close the incident, archive
// the artifact when the policy allows. Racing the auto-stop timer is safe;
// whoever stops the capture first finalizes, the other gets NotRecording.
func (o *Orchestrator) StopSOS(ctx context.Context, userID id.UserID) (*StopResult, error) {
	ctx, span := o.tracer.Start(ctx, "sos.stop",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	o.mu.Lock()
	sess, ok := o.sessions[userID]
	if !ok || sess.state != StateRecordingActive {
		o.mu.Unlock()
		return nil, derrors.New(derrors.CodeConflict, "no active sos recording")
	}
	recorder := sess.recorder
	incidentID := sess.incidentID
	o.mu.Unlock()

	artifact, err := recorder.Stop()
	if err != nil {
		// The auto-stop timer won the race and is finalizing.
		return nil, derrors.New(derrors.CodeConflict, "no active sos recording")
	}

	o.mu.Lock()
	sess.state = StateReady
	sess.incidentID = id.IncidentID{}
	sess.recordingID = id.RecordingID{}
	o.active--
	active := o.active
	o.mu.Unlock()
	if o.metrics != nil {
		o.metrics.SetActiveRecordings(active)
	}

	return o.finalize(ctx, userID, incidentID, artifact, false)
}

// Status reports the user's lifecycle state.
func (o *Orchestrator) Status(userID id.UserID) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[userID]
	if !ok {
		return StateReady
	}
	return sess.state
}

// Shutdown releases every session's device resources.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	sessions := make([]*session, 0, len(o.sessions))
	for _, sess := range o.sessions {
		sessions = append(sessions, sess)
	}
	o.sessions = make(map[id.UserID]*session)
	o.mu.Unlock()

	for _, sess := range sessions {
		if sess.recorder != nil {
			sess.recorder.Cleanup()
		}
		if sess.acquirer != nil {
			sess.acquirer.Close()
		}
	}
}

// handleAutoStop is the RecorderFactory callback target. The capture layer
// already stopped itself; this closes the incident the recording belonged to.
func (o *Orchestrator) handleAutoStop(userID id.UserID, artifact capture.Artifact) {
	ctx, span := o.tracer.Start(context.Background(), "sos.auto_stop",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	o.mu.Lock()
	sess, ok := o.sessions[userID]
	if !ok || sess.state != StateRecordingActive || sess.recordingID != artifact.RecordingID {
		// An explicit stop already finalized this episode.
		o.mu.Unlock()
		return
	}
	incidentID := sess.incidentID
	sess.state = StateReady
	sess.incidentID = id.IncidentID{}
	sess.recordingID = id.RecordingID{}
	o.active--
	active := o.active
	o.mu.Unlock()
	if o.metrics != nil {
		o.metrics.SetActiveRecordings(active)
	}

	if _, err := o.finalize(ctx, userID, incidentID, &artifact, true); err != nil {
		o.logger.ErrorContext(ctx, "auto-stop finalization failed",
			"user_id", userID,
			"incident_id", incidentID,
			"error", err,
		)
	}
}

func (o *Orchestrator) finalize(ctx context.Context, userID id.UserID, incidentID id.IncidentID, artifact *capture.Artifact, autoStop bool) (*StopResult, error) {
	recRef := artifact.RecordingID
	incident, err := o.incidents.Complete(ctx, userID, incidentID, &recRef)
	if err != nil {
		return nil, err
	}

	archived := false
	if o.archiver != nil && o.archive != nil && o.archive(ctx, userID) {
		if _, err := o.archiver.Persist(ctx, userID, &incidentID, *artifact); err != nil {
			o.logger.ErrorContext(ctx, "failed to archive recording",
				"recording_id", artifact.RecordingID,
				"error", err,
			)
		} else {
			archived = true
		}
	}

	if o.metrics != nil {
		o.metrics.ObserveRecordingDuration(artifact.Duration.Seconds())
	}
	o.publish(ctx, events.Event{
		Type:        events.TypeRecordingStopped,
		UserID:      userID,
		IncidentID:  incidentID.String(),
		RecordingID: artifact.RecordingID.String(),
		DurationMS:  artifact.Duration.Milliseconds(),
		AutoStop:    autoStop,
	})
	o.publish(ctx, events.Event{
		Type:       events.TypeIncidentCompleted,
		UserID:     userID,
		IncidentID: incidentID.String(),
	})

	o.logger.InfoContext(ctx, "sos stopped",
		"user_id", userID,
		"incident_id", incidentID,
		"auto_stop", autoStop,
		"archived", archived,
	)
	return &StopResult{Incident: incident, Artifact: artifact, Archived: archived}, nil
}

// snapshotLocation is best effort: any failure logs and returns nil.
func (o *Orchestrator) snapshotLocation(ctx context.Context, userID id.UserID, sess *session) *location.Position {
	acquirer, err := o.acquirerFor(userID, sess)
	if err != nil {
		o.logger.WarnContext(ctx, "location acquirer unavailable", "user_id", userID, "error", err)
		return nil
	}
	pos, err := acquirer.Acquire(ctx, o.maxCacheAge)
	if err != nil {
		o.logger.WarnContext(ctx, "proceeding without location", "user_id", userID, "error", err)
		return nil
	}
	return pos
}

// alertContacts is best effort: a failed roster read alerts nobody but the
// raise continues.
func (o *Orchestrator) alertContacts(ctx context.Context, userID id.UserID, pos *location.Position, opts RaiseOptions) *notify.AlertSummary {
	roster, err := o.contacts.List(ctx, userID)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to load contact roster", "user_id", userID, "error", err)
		roster = nil
	}
	summary, err := o.alerter.SendSOSAlert(ctx, roster, notify.Alert{
		Location: pos,
		Kind:     string(opts.Kind),
		Notes:    opts.Notes,
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "sos alert fan-out failed", "user_id", userID, "error", err)
		return &notify.AlertSummary{}
	}

	o.publish(ctx, events.Event{
		Type:             events.TypeDeliverySummary,
		UserID:           userID,
		AlertID:          summary.AlertID.String(),
		TotalContacts:    summary.TotalContacts,
		SuccessfulAlerts: summary.SuccessfulAlerts,
	})
	return summary
}

func (o *Orchestrator) sessionLocked(userID id.UserID) *session {
	sess, ok := o.sessions[userID]
	if !ok {
		sess = &session{state: StateReady}
		o.sessions[userID] = sess
	}
	return sess
}

func (o *Orchestrator) recorderFor(userID id.UserID, sess *session) (Recorder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sess.recorder != nil {
		return sess.recorder, nil
	}
	recorder, err := o.recorders(userID, func(artifact capture.Artifact) {
		o.handleAutoStop(userID, artifact)
	})
	if err != nil {
		return nil, err
	}
	sess.recorder = recorder
	return recorder, nil
}

func (o *Orchestrator) acquirerFor(userID id.UserID, sess *session) (LocationAcquirer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sess.acquirer != nil {
		return sess.acquirer, nil
	}
	acquirer, err := o.acquirers(userID)
	if err != nil {
		return nil, err
	}
	sess.acquirer = acquirer
	return acquirer, nil
}

func (o *Orchestrator) rejected(reason string) {
	if o.metrics != nil {
		o.metrics.IncrementSOSRejected(reason)
	}
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.publisher == nil {
		return
	}
	event.Timestamp = o.clock()
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish lifecycle event", "type", string(event.Type), "error", err)
	}
}

func geoPoint(pos *location.Position) *incidentmodels.GeoPoint {
	if pos == nil {
		return nil
	}
	return &incidentmodels.GeoPoint{Lat: pos.Lat, Lon: pos.Lon}
}
