package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseRegisterHappyPath(t *testing.T) {
	var r closeRegister
	require.Equal(t, stateNotClosed, r.load())

	require.True(t, r.goLocallyClosed())
	require.Equal(t, stateLocallyClosed, r.load())

	require.True(t, r.goClosed())
	require.Equal(t, stateClosed, r.load())
}

func TestCloseRegisterLocallyAndRemotelyAreExclusive(t *testing.T) {
	var r closeRegister
	require.True(t, r.goLocallyClosed())
	require.False(t, r.goRemotelyClosed(), "only the first transition out of NOT_CLOSED may win")
	require.Equal(t, stateLocallyClosed, r.load())
}

func TestCloseRegisterGoClosedIsIdempotent(t *testing.T) {
	var r closeRegister
	require.True(t, r.goClosed())
	require.False(t, r.goClosed(), "a second call once already CLOSED must report no transition")
	require.Equal(t, stateClosed, r.load())
}

func TestCloseRegisterDoubleCloseReportsFalse(t *testing.T) {
	var r closeRegister
	require.True(t, r.goLocallyClosed())
	require.False(t, r.goLocallyClosed())
}

func TestCloseStateString(t *testing.T) {
	require.Equal(t, "NOT_CLOSED", stateNotClosed.String())
	require.Equal(t, "LOCALLY_CLOSED", stateLocallyClosed.String())
	require.Equal(t, "REMOTELY_CLOSED", stateRemotelyClosed.String())
	require.Equal(t, "CLOSED", stateClosed.String())
	require.Equal(t, "UNKNOWN", closeState(99).String())
}
