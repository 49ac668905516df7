// Package e2e drives the assembled service over HTTP: real router, real
// middleware, real orchestrator, memory stores, and the device bridge in
// place of a phone.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aegis/internal/auth"
	"aegis/internal/bridge"
	"aegis/internal/capture"
	contactservice "aegis/internal/contacts/service"
	contactstore "aegis/internal/contacts/store"
	incidentservice "aegis/internal/incident/service"
	incidentstore "aegis/internal/incident/store"
	"aegis/internal/location"
	locationcache "aegis/internal/location/cache"
	"aegis/internal/notify"
	"aegis/internal/realtime"
	recordingservice "aegis/internal/recording/service"
	recordingstore "aegis/internal/recording/store"
	"aegis/internal/sos"
	httptransport "aegis/internal/transport/http"
	userservice "aegis/internal/user/service"
	userstore "aegis/internal/user/store"
	id "aegis/pkg/domain"
)

type SOSFlowSuite struct {
	suite.Suite
	server *httptest.Server
	users  *userservice.Service
	token  string
	userID string
}

func TestSOSFlowSuite(t *testing.T) {
	suite.Run(t, new(SOSFlowSuite))
}

func (s *SOSFlowSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)

	users, err := userservice.New(userstore.NewMemory())
	s.Require().NoError(err)
	s.users = users
	contacts, err := contactservice.New(contactstore.NewMemory())
	s.Require().NoError(err)
	incidents, err := incidentservice.New(incidentstore.NewMemory())
	s.Require().NoError(err)
	recordings, err := recordingservice.New(recordingstore.NewMemory())
	s.Require().NoError(err)

	hub := realtime.NewHub()
	s.T().Cleanup(hub.Close)
	gateway := bridge.NewGateway()

	// No SMS or SMTP endpoints are configured, so every delivery attempt
	// fails over to the next channel and ultimately reports failure. The
	// raise itself must not care.
	alerter := notify.New(
		notify.NewHTTPSMSGateway("", ""),
		notify.NewSMTPEmailSender("", "alerts@aegis.local"),
		notify.WithPerContactTimeout(200*time.Millisecond),
	)

	recorders := func(userID id.UserID, onAutoStop func(capture.Artifact)) (sos.Recorder, error) {
		return capture.New(gateway.MediaProviderFor(userID),
			capture.WithAutoStopHandler(onAutoStop),
		)
	}
	acquirers := func(userID id.UserID) (sos.LocationAcquirer, error) {
		return location.New(gateway.LocationProviderFor(userID), locationcache.NewMemory(), userID.String(),
			location.WithFixTimeout(time.Second),
		)
	}
	orchestrator, err := sos.New(recorders, acquirers, contacts, alerter, incidents,
		sos.WithPublisher(realtime.NewEventPublisher(hub)),
		sos.WithArchiver(recordings, sos.PremiumArchivePolicy(users)),
	)
	s.Require().NoError(err)
	s.T().Cleanup(orchestrator.Shutdown)

	tokens := auth.NewTokenService("e2e-signing-key", "aegis", "aegis-api")
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:    logger,
		Validator: tokens,
		Public: []httptransport.Registrar{
			httptransport.NewAuthHandler(users, tokens, time.Hour, logger),
		},
		Protected: []httptransport.Registrar{
			httptransport.NewSOSHandler(orchestrator),
			httptransport.NewContactsHandler(contacts),
			httptransport.NewIncidentsHandler(incidents),
			httptransport.NewRecordingsHandler(recordings),
			httptransport.NewUserHandler(users),
			httptransport.NewDeviceHandler(gateway),
			httptransport.NewWSHandler(hub, logger),
		},
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	s.registerAndLogin()
}

func (s *SOSFlowSuite) registerAndLogin() {
	resp := s.doJSON(http.MethodPost, "/auth/register", map[string]string{
		"email":    "maya@example.com",
		"password": "correct horse",
	})
	s.Require().Equal(http.StatusCreated, resp.status)
	s.userID = resp.body["id"].(string)

	resp = s.doJSON(http.MethodPost, "/auth/token", map[string]string{
		"email":    "maya@example.com",
		"password": "correct horse",
	})
	s.Require().Equal(http.StatusOK, resp.status)
	s.token = resp.body["access_token"].(string)
}

type jsonResponse struct {
	status int
	body   map[string]any
}

func (s *SOSFlowSuite) doJSON(method, path string, body any) jsonResponse {
	return s.doRaw(method, path, "application/json", s.encode(body))
}

func (s *SOSFlowSuite) doRaw(method, path, contentType string, payload []byte) jsonResponse {
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	out := jsonResponse{status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(&out.body)
	return out
}

func (s *SOSFlowSuite) encode(body any) []byte {
	if body == nil {
		return nil
	}
	data, err := json.Marshal(body)
	s.Require().NoError(err)
	return data
}

func (s *SOSFlowSuite) TestFullEpisode() {
	// The user sets up a trusted contact and the device reports a fix.
	resp := s.doJSON(http.MethodPost, "/contacts", map[string]string{
		"name":         "Ana",
		"phone":        "+1 555-0101",
		"relationship": "sister",
	})
	s.Require().Equal(http.StatusCreated, resp.status)

	resp = s.doJSON(http.MethodPost, "/device/location", map[string]any{
		"lat": 37.7749, "lon": -122.4194, "accuracy": 15.0,
	})
	s.Require().Equal(http.StatusAccepted, resp.status)

	// Panic button.
	resp = s.doJSON(http.MethodPost, "/sos", map[string]string{"kind": "audio"})
	s.Require().Equal(http.StatusCreated, resp.status)
	incidentID := resp.body["incident_id"].(string)
	s.Equal(true, resp.body["has_location"])
	alerts := resp.body["alerts"].(map[string]any)
	s.Equal(float64(1), alerts["total_contacts"])

	resp = s.doJSON(http.MethodGet, "/sos/status", nil)
	s.Equal("recording_active", resp.body["state"])

	// The device streams media while recording.
	for i := range 3 {
		resp = s.doRaw(http.MethodPost, "/device/media", "application/octet-stream",
			[]byte(fmt.Sprintf("slice-%d", i)))
		s.Require().Equal(http.StatusAccepted, resp.status)
	}
	// Let the capture collector drain the uploads.
	time.Sleep(100 * time.Millisecond)

	// All clear.
	resp = s.doJSON(http.MethodDelete, "/sos", nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Equal(incidentID, resp.body["incident_id"])
	s.Equal(float64(21), resp.body["size_bytes"]) // three 7-byte slices
	s.Equal(false, resp.body["archived"])         // free tier

	resp = s.doJSON(http.MethodGet, "/sos/status", nil)
	s.Equal("ready", resp.body["state"])

	// The episode is on the record.
	resp = s.doJSON(http.MethodGet, "/incidents", nil)
	s.Require().Equal(http.StatusOK, resp.status)
	incidents := resp.body["incidents"].([]any)
	s.Require().Len(incidents, 1)
	record := incidents[0].(map[string]any)
	s.Equal(incidentID, record["id"])
	s.Equal("completed", record["status"])
	s.NotEmpty(record["recording_ref"])
	loc := record["location"].(map[string]any)
	s.InDelta(37.7749, loc["lat"].(float64), 1e-6)
}

func (s *SOSFlowSuite) TestPremiumArchivalAndDownload() {
	_, err := s.users.SetPremium(s.T().Context(), id.UserID(s.userID), true)
	s.Require().NoError(err)

	resp := s.doJSON(http.MethodPost, "/sos", nil)
	s.Require().Equal(http.StatusCreated, resp.status)

	resp = s.doRaw(http.MethodPost, "/device/media", "application/octet-stream", []byte("evidence"))
	s.Require().Equal(http.StatusAccepted, resp.status)
	time.Sleep(100 * time.Millisecond)

	resp = s.doJSON(http.MethodDelete, "/sos", nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Equal(true, resp.body["archived"])

	resp = s.doJSON(http.MethodGet, "/recordings", nil)
	s.Require().Equal(http.StatusOK, resp.status)
	recordings := resp.body["recordings"].([]any)
	s.Require().Len(recordings, 1)
	recordingID := recordings[0].(map[string]any)["id"].(string)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/recordings/"+recordingID+"/payload", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	raw, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer raw.Body.Close()
	s.Equal(http.StatusOK, raw.StatusCode)
	s.Equal("audio/webm;codecs=opus", raw.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err = buf.ReadFrom(raw.Body)
	s.Require().NoError(err)
	s.Equal("evidence", buf.String())
}

func (s *SOSFlowSuite) TestDoubleRaiseAndStrayStop() {
	resp := s.doJSON(http.MethodPost, "/sos", nil)
	s.Require().Equal(http.StatusCreated, resp.status)

	resp = s.doJSON(http.MethodPost, "/sos", nil)
	s.Equal(http.StatusConflict, resp.status)

	resp = s.doJSON(http.MethodDelete, "/sos", nil)
	s.Require().Equal(http.StatusOK, resp.status)

	resp = s.doJSON(http.MethodDelete, "/sos", nil)
	s.Equal(http.StatusConflict, resp.status)
}
