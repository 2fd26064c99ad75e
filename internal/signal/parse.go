package signal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ParseEnvelope extracts a normalized Inbound record from a raw gateway
// payload. Malformed JSON is a hard parse failure. A well-formed envelope
// that carries neither a dataMessage nor a syncMessage.sentMessage (for
// example a read receipt or typing indicator) yields (nil, nil) and must
// not propagate further.
func ParseEnvelope(raw []byte) (*Inbound, error) {
	var wrapper EnvelopeWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("malformed gateway payload: %w", err)
	}

	env := wrapper.Envelope

	body := env.DataMessage
	if body == nil && env.SyncMessage != nil {
		body = env.SyncMessage.SentMessage
	}
	if body == nil {
		return nil, nil
	}

	inbound := &Inbound{
		Timestamp:    env.Timestamp,
		SourceName:   env.SourceName,
		SourceNumber: env.SourceNumber,
		Message:      body.Message,
	}
	if body.GroupInfo != nil {
		inbound.GroupID = body.GroupInfo.GroupID
	}
	return inbound, nil
}

// GroupRecipient converts a raw group identifier into the recipient form
// the send endpoint expects: "group." followed by the base64 of the id.
func GroupRecipient(groupID string) string {
	return "group." + base64.StdEncoding.EncodeToString([]byte(groupID))
}
