package utils

import (
	"time"
)

// Context keys used by handlers to propagate request metadata
const (
	RequestIDKey  = "request_id"
	UserAgentKey  = "user_agent"
	IPAddressKey  = "ip_address"
	EndpointKey   = "endpoint"
	TimeoutKey    = "timeout"
	CancelFuncKey = "cancel_func"
)

// Pipeline constants
const (
	// SyncGuardTTL is how long a tag stays locked by one pipeline attempt.
	// A crashed worker self-heals after this window.
	SyncGuardTTL = 30 * time.Second

	// MaxDispatchToken is the upper bound of the 1-255 correlation token space
	MaxDispatchToken = 255

	// ThrottleEvery is the default number of bulk submissions between pauses
	ThrottleEvery = 10

	// ThrottlePause is the default pause inserted after ThrottleEvery submissions
	ThrottlePause = 50 * time.Millisecond
)
