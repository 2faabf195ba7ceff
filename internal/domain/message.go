package domain

import "net/url"

// MessageKind distinguishes a digest from an empty-result notice.
type MessageKind string

const (
	MessageDigest MessageKind = "digest"
	MessageEmpty  MessageKind = "empty"
)

// Message is a transport-ready payload produced by a messenger adapter.
type Message struct {
	Kind     MessageKind
	Keyword  string
	Endpoint string
	Form     url.Values
}

// Delivery is the transport response of a sent message.
type Delivery struct {
	StatusCode int
	Body       string
}

// OK reports a successful delivery.
func (d Delivery) OK() bool {
	return d.StatusCode >= 200 && d.StatusCode < 300
}
