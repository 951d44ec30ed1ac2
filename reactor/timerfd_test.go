package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TimerFDTestSuite struct {
	suite.Suite

	timer *TimerFD
}

func TestTimerFDTestSuite(t *testing.T) {
	suite.Run(t, new(TimerFDTestSuite))
}

func (s *TimerFDTestSuite) SetupTest() {
	timer, err := NewTimerFD()
	s.Require().NoError(err)
	s.timer = timer
}

func (s *TimerFDTestSuite) TearDownTest() {
	s.NoError(s.timer.Close())
}

func (s *TimerFDTestSuite) TestConsumeUnfired() {
	n, err := s.timer.Consume()
	s.NoError(err)
	s.Zero(n)
}

func (s *TimerFDTestSuite) TestFires() {
	s.Require().NoError(s.timer.Set(time.Millisecond))

	time.Sleep(10 * time.Millisecond)

	n, err := s.timer.Consume()
	s.NoError(err)
	s.Equal(uint64(1), n)
}

func (s *TimerFDTestSuite) TestZeroFiresImmediately() {
	s.Require().NoError(s.timer.Set(0))

	time.Sleep(5 * time.Millisecond)

	n, err := s.timer.Consume()
	s.NoError(err)
	s.Equal(uint64(1), n)
}

func (s *TimerFDTestSuite) TestRearmReplacesDeadline() {
	s.Require().NoError(s.timer.Set(time.Millisecond))
	s.Require().NoError(s.timer.Set(time.Hour))

	time.Sleep(10 * time.Millisecond)

	n, err := s.timer.Consume()
	s.NoError(err)
	s.Zero(n)
}

func (s *TimerFDTestSuite) TestStop() {
	s.Require().NoError(s.timer.Set(time.Millisecond))
	s.Require().NoError(s.timer.Stop())

	time.Sleep(10 * time.Millisecond)

	n, err := s.timer.Consume()
	s.NoError(err)
	s.Zero(n)
}

func (s *TimerFDTestSuite) TestConsumeClearsReadiness() {
	s.Require().NoError(s.timer.Set(time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, err := s.timer.Consume()
	s.Require().NoError(err)

	n, err := s.timer.Consume()
	s.NoError(err)
	s.Zero(n)
}
