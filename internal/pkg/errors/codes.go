package errors

import "fmt"

// Kind classifies a transport failure. It is the only error vocabulary the
// chat client exposes to its callers.
type Kind int

const (
	Unknown Kind = iota
	ConnectionTimeout
	SendTimeout
	ReceiveTimeout
	NoInternet
	ServerError
	ClientError
	ParseError
	Cancelled
	NotConfigured
)

// kindInfo describes a Kind
type kindInfo struct {
	Name      string
	Message   string
	Retryable bool
}

var kindMap = map[Kind]kindInfo{
	Unknown:           {"Unknown", "Unexpected error", false},
	ConnectionTimeout: {"ConnectionTimeout", "Connection timed out", true},
	SendTimeout:       {"SendTimeout", "Request timed out while sending", true},
	ReceiveTimeout:    {"ReceiveTimeout", "Server took too long to respond", true},
	NoInternet:        {"NoInternet", "Could not reach the server", true},
	ServerError:       {"ServerError", "Server error", true},
	ClientError:       {"ClientError", "Request rejected by server", false},
	ParseError:        {"ParseError", "Malformed server response", false},
	Cancelled:         {"Cancelled", "Request cancelled", false},
	NotConfigured:     {"NotConfigured", "Server URL not configured", false},
}

// String returns the Kind name
func (k Kind) String() string {
	if info, ok := kindMap[k]; ok {
		return info.Name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message returns the display message for the Kind
func (k Kind) Message() string {
	if info, ok := kindMap[k]; ok {
		return info.Message
	}
	return kindMap[Unknown].Message
}

// Retryable reports whether the retry policy may repeat a request that
// failed with this Kind. ServerError is retryable under the same cap as
// the network kinds.
func (k Kind) Retryable() bool {
	return kindMap[k].Retryable
}
