package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPushPromiseSerializeRoundTrip guards the RFC 7540 6.6 wire layout:
// the promised stream-id must be the first four bytes of the payload,
// ahead of the header block fragment.
func TestPushPromiseSerializeRoundTrip(t *testing.T) {
	pp := AcquirePushPromise()
	defer ReleasePushPromise(pp)

	pp.SetStream(42)
	pp.SetHeaders([]byte("fake-hpack-block"))
	pp.SetEndHeaders(true)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	pp.Serialize(fr)

	require.True(t, fr.Flags().Has(FlagEndHeaders))
	require.True(t, len(fr.payload) > 4)

	got := &PushPromise{}
	got.Reset()
	outFr := AcquireFrameHeader()
	defer ReleaseFrameHeader(outFr)
	outFr.SetFlags(fr.Flags())
	outFr.setPayload(fr.payload)

	require.NoError(t, got.Deserialize(outFr))
	require.Equal(t, uint32(42), got.Stream())
	require.Equal(t, []byte("fake-hpack-block"), got.Headers())
	require.True(t, got.EndHeaders())
}

func TestPushPromiseResetClearsState(t *testing.T) {
	pp := &PushPromise{}
	pp.SetStream(7)
	pp.SetHeaders([]byte("x"))
	pp.SetEndHeaders(true)

	pp.Reset()

	require.Equal(t, uint32(0), pp.Stream())
	require.Empty(t, pp.Headers())
	require.False(t, pp.EndHeaders())
}

func TestPushPromiseSetStreamMasksReservedBit(t *testing.T) {
	pp := &PushPromise{}
	pp.SetStream(1 << 31)
	require.Equal(t, uint32(0), pp.Stream(), "the reserved high bit must never be stored")
}

func TestPushPromiseDeserializeRejectsShortPayload(t *testing.T) {
	pp := &PushPromise{}
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.setPayload([]byte{1, 2, 3})

	require.ErrorIs(t, pp.Deserialize(fr), ErrMissingBytes)
}
