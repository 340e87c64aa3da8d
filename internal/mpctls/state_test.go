package mpctls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceCheckAllowsForwardProgression(t *testing.T) {
	assert.NotPanics(t, func() {
		sequenceCheck(Created, HandshakeInProgress)
		sequenceCheck(HandshakeInProgress, ApplicationExchange)
		sequenceCheck(ApplicationExchange, VerifierCommitted)
		sequenceCheck(VerifierCommitted, PlaintextOpened)
		sequenceCheck(PlaintextOpened, Finished)
	})
}

func TestSequenceCheckRejectsSkippedState(t *testing.T) {
	assert.Panics(t, func() {
		sequenceCheck(Created, ApplicationExchange)
	})
}

func TestSequenceCheckRejectsRepeatedState(t *testing.T) {
	assert.Panics(t, func() {
		sequenceCheck(HandshakeInProgress, HandshakeInProgress)
	})
}

func TestSequenceCheckRejectsBackwardTransition(t *testing.T) {
	assert.Panics(t, func() {
		sequenceCheck(ApplicationExchange, HandshakeInProgress)
	})
}

func TestStateStringCoversTerminalStates(t *testing.T) {
	assert.Equal(t, "HandshakeFailed", HandshakeFailed.String())
	assert.Equal(t, "Timeout", StateTimeout.String())
}

func TestSessionStateAdvanceFollowsTheFullSequence(t *testing.T) {
	s := newSessionState()
	assert.Equal(t, Created, s.current())

	assert.NotPanics(t, func() {
		s.advance(HandshakeInProgress)
		s.advance(ApplicationExchange)
		s.advance(VerifierCommitted)
		s.advance(PlaintextOpened)
		s.advance(Finished)
	})
	assert.Equal(t, Finished, s.current())
}

func TestSessionStateAdvanceRejectsSkippedState(t *testing.T) {
	s := newSessionState()
	assert.Panics(t, func() {
		s.advance(ApplicationExchange)
	})
}

func TestSessionStateFailBypassesSequenceCheck(t *testing.T) {
	s := newSessionState()
	s.advance(HandshakeInProgress)
	assert.NotPanics(t, func() {
		s.fail(HandshakeFailed)
	})
	assert.Equal(t, HandshakeFailed, s.current())
}
