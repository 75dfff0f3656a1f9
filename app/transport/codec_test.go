package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestTopicLayout(t *testing.T) {
	assert.Equal(t, "/esl/AA:BB:CC:00:11:22/update", CommandTopic("esl", "AA:BB:CC:00:11:22"))
	assert.Equal(t, "/esl/+/result", ResultTopicFilter("esl"))
	assert.Equal(t, "/esl/+/heartbeat", HeartbeatTopicFilter("esl"))
}

func TestUpdateCommandRoundTrip(t *testing.T) {
	cmd := UpdateCommand{
		TagSerial:   "AB12CD34EF56",
		Pattern:     0,
		PageIndex:   0,
		AccentFlags: 3,
		RepeatCount: 1,
		Token:       42,
		Image:       []byte{0x42, 0x4D, 0x01, 0x02, 0x03},
	}

	payload, err := EncodeUpdateCommand(cmd)
	require.NoError(t, err)

	decoded, err := DecodeUpdateCommand(payload)
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
}

// The outbound frame is a two-element array: the positional parameter tuple,
// then the raw image. Gateways decode by position, so the layout is pinned
// here against accidental reordering.
func TestUpdateCommandWireLayout(t *testing.T) {
	payload, err := EncodeUpdateCommand(UpdateCommand{
		TagSerial:   "AB12CD34",
		AccentFlags: 1,
		RepeatCount: 1,
		Token:       7,
		Image:       []byte{0xAA},
	})
	require.NoError(t, err)

	var frame []msgpack.RawMessage
	require.NoError(t, msgpack.Unmarshal(payload, &frame))
	require.Len(t, frame, 2)

	var params []any
	require.NoError(t, msgpack.Unmarshal(frame[0], &params))
	require.Len(t, params, 8)
	assert.Equal(t, "AB12CD34", params[0])
	assert.EqualValues(t, 0, params[1]) // pattern
	assert.EqualValues(t, 0, params[2]) // page index
	assert.EqualValues(t, 1, params[3]) // accent flags
	assert.EqualValues(t, 1, params[4]) // repeat count
	assert.EqualValues(t, 7, params[5]) // token

	var image []byte
	require.NoError(t, msgpack.Unmarshal(frame[1], &image))
	assert.Equal(t, []byte{0xAA}, image)
}

// Inbound tuples come from device firmware; the decoder must map a plain
// positional array onto the struct fields.
func TestDecodeResultFromPositionalArray(t *testing.T) {
	payload, err := msgpack.Marshal([]any{"AB12CD34EF56", 10, 87, "1.2.0", 0, 42, 21, 11})
	require.NoError(t, err)

	msg, err := DecodeResult(payload)
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34EF56", msg.TagSerial)
	assert.Equal(t, 10, msg.RFPower)
	assert.Equal(t, 87, msg.Battery)
	assert.Equal(t, "1.2.0", msg.FirmwareVersion)
	assert.Equal(t, 0, msg.StatusCode)
	assert.Equal(t, 42, msg.Token)
	assert.Equal(t, 21, msg.Temperature)
	assert.Equal(t, 11, msg.Channel)
}

func TestResultRoundTrip(t *testing.T) {
	msg := ResultMessage{
		TagSerial:       "TAG00000001",
		RFPower:         -40,
		Battery:         55,
		FirmwareVersion: "2.0.1",
		StatusCode:      3,
		Token:           200,
		Temperature:     19,
		Channel:         4,
	}
	payload, err := EncodeResult(msg)
	require.NoError(t, err)

	decoded, err := DecodeResult(payload)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestHeartbeatDecode(t *testing.T) {
	payload, err := msgpack.Marshal([]any{"AA:BB:CC:00:11:22", int64(3600), "1.0.0"})
	require.NoError(t, err)

	msg, err := DecodeHeartbeat(payload)
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:00:11:22", msg.GatewayMAC)
	assert.Equal(t, int64(3600), msg.UptimeSec)
	assert.Equal(t, "1.0.0", msg.FirmwareVersion)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeResult([]byte{0xFF, 0x00, 0x13})
	assert.Error(t, err)

	_, err = DecodeUpdateCommand([]byte("not msgpack"))
	assert.Error(t, err)
}
