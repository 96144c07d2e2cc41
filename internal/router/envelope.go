// Package router implements the message router: admission control,
// trigger detection, thread identification, invocation-context
// propagation, and agent invocation for every inbound channel message.
package router

// Envelope is the normalized inbound message produced by a channel
// and consumed by the router. It is created once per inbound event,
// never mutated, and discarded after dispatch.
type Envelope struct {
	Channel       string
	ChatID        string
	UserID        string
	UserName      string
	Text          string
	IsPrivate     bool
	ReplyTo       string
	MessageID     string
	ResetSession  bool
	ImageBase64   string
	ImageMimeType string
}

// HasImage reports whether the envelope carries an inline image.
func (e Envelope) HasImage() bool {
	return e.ImageBase64 != ""
}

// AgentResponse is what the router hands back to the calling channel
// after invoking the agent (or nil/zero-value when nothing should be
// sent, e.g. after a dropped or reset-only message).
type AgentResponse struct {
	Text string
}
