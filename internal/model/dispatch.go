// internal/model/dispatch.go
package model

// DispatchRequest is what the send pipeline hands to a channel transport.
type DispatchRequest struct {
	ProspectID    string  `json:"prospect_id"`
	Channel       Channel `json:"channel"`
	To            string  `json:"to"`
	Subject       string  `json:"subject"`
	Text          string  `json:"text"`
	HTML          string  `json:"html"`
	IsTest        bool    `json:"is_test"`
	ReplyTo       string  `json:"reply_to,omitempty"`
	SenderName    string  `json:"sender_name,omitempty"`
	CorrelationID string  `json:"correlation_id"`
}

// DispatchResult mirrors the transport's answer. Simulated results count as
// success for sequencing but are reported distinctly.
type DispatchResult struct {
	Success   bool   `json:"success"`
	Simulated bool   `json:"simulated,omitempty"`
	Blocked   bool   `json:"blocked,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message,omitempty"`
}
