package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"aegis/internal/notify"
	"aegis/internal/notify/mocks"
	derrors "aegis/pkg/domain-errors"
)

type ResilientSMSSuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	inner *mocks.MockSMSGateway
	now   time.Time
}

func TestResilientSMSSuite(t *testing.T) {
	suite.Run(t, new(ResilientSMSSuite))
}

func (s *ResilientSMSSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.inner = mocks.NewMockSMSGateway(s.ctrl)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ResilientSMSSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResilientSMSSuite) newGateway() *notify.ResilientSMSGateway {
	return notify.NewResilientSMSGateway(s.inner,
		notify.WithProbeInterval(30*time.Second),
		notify.WithBreakerClock(func() time.Time { return s.now }),
	)
}

func (s *ResilientSMSSuite) TestOpensAfterConsecutiveFailures() {
	ctx := context.Background()
	g := s.newGateway()
	sendErr := errors.New("gateway unreachable")

	s.inner.EXPECT().SendSMS(ctx, "+15550101", "hi").Return(sendErr).Times(3)
	for range 3 {
		s.ErrorIs(g.SendSMS(ctx, "+15550101", "hi"), sendErr)
	}

	// Circuit is open: the inner gateway is not called again.
	err := g.SendSMS(ctx, "+15550101", "hi")
	s.True(derrors.Is(err, derrors.CodeUnavailable))
}

func (s *ResilientSMSSuite) TestProbeRecoversTheCircuit() {
	ctx := context.Background()
	g := s.newGateway()
	sendErr := errors.New("gateway unreachable")

	s.inner.EXPECT().SendSMS(ctx, "+15550101", "hi").Return(sendErr).Times(3)
	for range 3 {
		_ = g.SendSMS(ctx, "+15550101", "hi")
	}

	// After the probe interval, single calls get through again. Two probe
	// successes close the circuit.
	s.inner.EXPECT().SendSMS(ctx, "+15550101", "hi").Return(nil).Times(2)
	s.now = s.now.Add(31 * time.Second)
	s.NoError(g.SendSMS(ctx, "+15550101", "hi"))
	s.now = s.now.Add(31 * time.Second)
	s.NoError(g.SendSMS(ctx, "+15550101", "hi"))

	// Closed: calls flow freely with no probe pacing.
	s.inner.EXPECT().SendSMS(ctx, "+15550101", "hi").Return(nil)
	s.NoError(g.SendSMS(ctx, "+15550101", "hi"))
}

func (s *ResilientSMSSuite) TestProbePacingWhileOpen() {
	ctx := context.Background()
	g := s.newGateway()
	sendErr := errors.New("gateway unreachable")

	s.inner.EXPECT().SendSMS(ctx, "+15550101", "hi").Return(sendErr).Times(3)
	for range 3 {
		_ = g.SendSMS(ctx, "+15550101", "hi")
	}

	// One probe per interval; the failed probe keeps the circuit open and
	// the next call inside the interval is short-circuited.
	s.inner.EXPECT().SendSMS(ctx, "+15550101", "hi").Return(sendErr)
	s.now = s.now.Add(31 * time.Second)
	s.ErrorIs(g.SendSMS(ctx, "+15550101", "hi"), sendErr)

	err := g.SendSMS(ctx, "+15550101", "hi")
	s.True(derrors.Is(err, derrors.CodeUnavailable))
}
