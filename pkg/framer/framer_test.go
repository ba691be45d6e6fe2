package framer_test

import (
	"testing"

	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/charonvid/charon/pkg/framer"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	rec := framer.Record{Index: 3, Total: 10, Kind: framer.KindParity, Payload: []byte("hello block")}
	data, err := framer.Marshal(rec)
	require.NoError(t, err)

	got, err := framer.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestUnmarshalDetectsCRCMismatch(t *testing.T) {
	rec := framer.Record{Index: 0, Total: 1, Kind: framer.KindData, Payload: []byte("payload")}
	data, err := framer.Marshal(rec)
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF

	_, err = framer.Unmarshal(data)
	require.Error(t, err)
	require.ErrorIs(t, err, codecerr.ErrFormat)
}

func TestUnmarshalRejectsIndexOutOfRange(t *testing.T) {
	// Marshal a valid record (total=1, index=0) then corrupt just the index
	// field to equal total. CRC32 only covers the payload, so this must be
	// caught by the idx < total bounds check, not the CRC guard.
	rec := framer.Record{Index: 0, Total: 1, Kind: framer.KindData, Payload: []byte("payload")}
	data, err := framer.Marshal(rec)
	require.NoError(t, err)

	data[7] = 1 // bump idx from 0 to 1, equal to total

	_, err = framer.Unmarshal(data)
	require.Error(t, err)
	require.ErrorIs(t, err, codecerr.ErrFormat)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	_, err := framer.Unmarshal([]byte("QD"))
	require.Error(t, err)
	require.ErrorIs(t, err, codecerr.ErrFormat)
}

func TestMarshalEmptyPayload(t *testing.T) {
	rec := framer.Record{Index: 0, Total: 1, Kind: framer.KindData, Payload: nil}
	data, err := framer.Marshal(rec)
	require.NoError(t, err)
	got, err := framer.Unmarshal(data)
	require.NoError(t, err)
	require.Empty(t, got.Payload)
}
