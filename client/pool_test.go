package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"async-http/engine/enginetest"
)

type ConnPoolTestSuite struct {
	suite.Suite

	eng  *enginetest.Engine
	pool *connPool
}

func TestConnPoolTestSuite(t *testing.T) {
	suite.Run(t, new(ConnPoolTestSuite))
}

func (s *ConnPoolTestSuite) SetupTest() {
	s.eng = enginetest.New()
	s.pool = newConnPool(s.eng, 2)
}

func (s *ConnPoolTestSuite) TestNew() {
	s.Equal(uint(2), s.pool.capacity())
	s.Equal(uint(2), s.pool.freeCount())

	for i := range s.pool.stash {
		s.NotNil(s.pool.stash[i].handle)
		s.Equal(i, s.pool.stash[i].slot)
	}
}

func (s *ConnPoolTestSuite) TestAcquireRelease() {
	c, err := s.pool.acquire()
	s.Require().NoError(err)
	s.Require().NotNil(c)
	s.Equal(uint(1), s.pool.freeCount())

	s.Require().NoError(s.pool.release(c))
	s.Equal(uint(2), s.pool.freeCount())
}

func (s *ConnPoolTestSuite) TestAcquireSaturated() {
	for i := 0; i < 2; i++ {
		c, err := s.pool.acquire()
		s.Require().NoError(err)
		s.Require().NotNil(c)
	}

	s.Zero(s.pool.freeCount())

	// Saturation is signaled by nil, not by an error.
	c, err := s.pool.acquire()
	s.NoError(err)
	s.Nil(c)
}

func (s *ConnPoolTestSuite) TestReleaseNotBound() {
	s.ErrorIs(s.pool.release(&s.pool.stash[0]), errSlotBookkeeping)
}

func (s *ConnPoolTestSuite) TestReleaseTwice() {
	c, err := s.pool.acquire()
	s.Require().NoError(err)

	s.Require().NoError(s.pool.release(c))
	s.ErrorIs(s.pool.release(c), errSlotBookkeeping)
}

func (s *ConnPoolTestSuite) TestReleaseClearsState() {
	c, err := s.pool.acquire()
	s.Require().NoError(err)

	c.req = newRequest("GET", "u", &recordingCallbacks{}, Content{}, nil, 0, time.Time{})
	c.uploadOffset = 7
	c.afterContinue = true
	c.parseErr = errMalformedStatusLine
	c.doneFired = true

	s.Require().NoError(s.pool.release(c))

	s.Nil(c.req)
	s.Zero(c.uploadOffset)
	s.False(c.afterContinue)
	s.NoError(c.parseErr)
	s.False(c.doneFired)
}

func (s *ConnPoolTestSuite) TestLookup() {
	for i := range s.pool.stash {
		c, ok := s.pool.lookup(s.pool.stash[i].handle)
		s.Require().True(ok)
		s.Equal(&s.pool.stash[i], c)
	}

	_, ok := s.pool.lookup(s.eng.NewHandle())
	s.False(ok)
}

func (s *ConnPoolTestSuite) TestSlotIdentityPreservedAcrossCycles() {
	first, err := s.pool.acquire()
	s.Require().NoError(err)
	second, err := s.pool.acquire()
	s.Require().NoError(err)
	s.Require().NoError(s.pool.release(first))
	s.Require().NoError(s.pool.release(second))

	// FIFO free list: slots come back in release order, same backing array.
	for i := 0; i < 10; i++ {
		a, err := s.pool.acquire()
		s.Require().NoError(err)
		b, err := s.pool.acquire()
		s.Require().NoError(err)

		s.Same(first, a)
		s.Same(second, b)

		s.Require().NoError(s.pool.release(a))
		s.Require().NoError(s.pool.release(b))
	}
}
