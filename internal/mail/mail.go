package mail

import "context"

// Message is a single outbound email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers messages. The auth core depends on this interface only;
// the production implementation is the Resend client in this package.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
