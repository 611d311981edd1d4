package network

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"msg_id":"m1","action":"ping"}`)
	require.NoError(t, WriteFrame(&buf, body, DefaultMaxFrameSize))

	assert.EqualValues(t, len(body)+4, buf.Len())
	frame, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, body, frame)
}

func TestFramePrefixIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("abc"), DefaultMaxFrameSize))
	assert.EqualValues(t, 3, binary.BigEndian.Uint32(buf.Bytes()[:4]))
}

func TestFrameTooBig(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, WriteFrame(&buf, make([]byte, MinFrameSizeLimit+1), MinFrameSizeLimit), ErrFrameTooBig)

	binary.Write(&buf, binary.BigEndian, uint32(MinFrameSizeLimit+1))
	_, err := ReadFrame(&buf, MinFrameSizeLimit)
	require.ErrorIs(t, err, ErrFrameTooBig)
	assert.True(t, IsFatal(err))
}

func TestFrameShortRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("abcdef"), DefaultMaxFrameSize))
	truncated := bytes.NewReader(buf.Bytes()[:7])
	_, err := ReadFrame(truncated, DefaultMaxFrameSize)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}
