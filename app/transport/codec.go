// Package transport implements the binary wire protocol and pub/sub client
// used to reach gateways: msgpack-framed update commands out, result and
// heartbeat messages in.
package transport

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Topic layout: commands go to one gateway, results and heartbeats are
// consumed with a single wildcard subscription per process.
const (
	commandSuffix   = "update"
	resultSuffix    = "result"
	heartbeatSuffix = "heartbeat"
)

// CommandTopic addresses one gateway by its protocol identifier
func CommandTopic(namespace, gatewayMAC string) string {
	return fmt.Sprintf("/%s/%s/%s", namespace, gatewayMAC, commandSuffix)
}

// ResultTopicFilter matches result messages from every gateway
func ResultTopicFilter(namespace string) string {
	return fmt.Sprintf("/%s/+/%s", namespace, resultSuffix)
}

// HeartbeatTopicFilter matches heartbeat messages from every gateway
func HeartbeatTopicFilter(namespace string) string {
	return fmt.Sprintf("/%s/+/%s", namespace, heartbeatSuffix)
}

// updateParams is the fixed-position parameter tuple of an update command.
// Field order is part of the wire contract and must not change.
type updateParams struct {
	_msgpack struct{} `msgpack:",as_array"`

	TagSerial   string
	Pattern     int
	PageIndex   int
	AccentFlags int
	RepeatCount int
	Token       int
	OldKey      int
	NewKey      int
}

// updateFrame is the two-part outbound payload: parameter tuple, then raw
// image bytes
type updateFrame struct {
	_msgpack struct{} `msgpack:",as_array"`

	Params updateParams
	Image  []byte
}

// UpdateCommand is one outbound display update
type UpdateCommand struct {
	TagSerial   string
	Pattern     int
	PageIndex   int
	AccentFlags int
	RepeatCount int
	Token       int
	OldKey      int
	NewKey      int
	Image       []byte
}

// EncodeUpdateCommand packs the command into its wire frame
func EncodeUpdateCommand(cmd UpdateCommand) ([]byte, error) {
	frame := updateFrame{
		Params: updateParams{
			TagSerial:   cmd.TagSerial,
			Pattern:     cmd.Pattern,
			PageIndex:   cmd.PageIndex,
			AccentFlags: cmd.AccentFlags,
			RepeatCount: cmd.RepeatCount,
			Token:       cmd.Token,
			OldKey:      cmd.OldKey,
			NewKey:      cmd.NewKey,
		},
		Image: cmd.Image,
	}
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode update command: %w", err)
	}
	return payload, nil
}

// DecodeUpdateCommand unpacks a wire frame back into a command (used by
// tests and diagnostic tooling; gateways are the normal consumer)
func DecodeUpdateCommand(payload []byte) (UpdateCommand, error) {
	var frame updateFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return UpdateCommand{}, fmt.Errorf("failed to decode update command: %w", err)
	}
	return UpdateCommand{
		TagSerial:   frame.Params.TagSerial,
		Pattern:     frame.Params.Pattern,
		PageIndex:   frame.Params.PageIndex,
		AccentFlags: frame.Params.AccentFlags,
		RepeatCount: frame.Params.RepeatCount,
		Token:       frame.Params.Token,
		OldKey:      frame.Params.OldKey,
		NewKey:      frame.Params.NewKey,
		Image:       frame.Image,
	}, nil
}

// ResultMessage is one inbound confirmation from a gateway. The tuple field
// order is fixed by the device firmware.
type ResultMessage struct {
	_msgpack struct{} `msgpack:",as_array"`

	TagSerial       string
	RFPower         int
	Battery         int
	FirmwareVersion string
	StatusCode      int
	Token           int
	Temperature     int
	Channel         int
}

// DecodeResult unpacks an inbound result tuple
func DecodeResult(payload []byte) (ResultMessage, error) {
	var msg ResultMessage
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return ResultMessage{}, fmt.Errorf("failed to decode result message: %w", err)
	}
	return msg, nil
}

// EncodeResult packs a result tuple (used by tests and the gateway simulator)
func EncodeResult(msg ResultMessage) ([]byte, error) {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result message: %w", err)
	}
	return payload, nil
}

// HeartbeatMessage is one inbound gateway liveness report
type HeartbeatMessage struct {
	_msgpack struct{} `msgpack:",as_array"`

	GatewayMAC      string
	UptimeSec       int64
	FirmwareVersion string
}

// DecodeHeartbeat unpacks an inbound heartbeat tuple
func DecodeHeartbeat(payload []byte) (HeartbeatMessage, error) {
	var msg HeartbeatMessage
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return HeartbeatMessage{}, fmt.Errorf("failed to decode heartbeat message: %w", err)
	}
	return msg, nil
}

// EncodeHeartbeat packs a heartbeat tuple (used by tests and the gateway
// simulator)
func EncodeHeartbeat(msg HeartbeatMessage) ([]byte, error) {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode heartbeat message: %w", err)
	}
	return payload, nil
}
