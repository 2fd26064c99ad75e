// Package signal implements the signal-cli-rest-api gateway surface:
// inbound envelope wire types and parsing, the reply REST client, and
// the streaming receive connection.
package signal

// EnvelopeWrapper matches the Signal REST API payload structure delivered
// on both the websocket and the REST receive endpoint.
type EnvelopeWrapper struct {
	Envelope Envelope `json:"envelope"`
	Account  string   `json:"account"`
}

// Envelope carries routing metadata and one of two possible body shapes:
// a direct dataMessage, or a sentMessage nested inside a syncMessage
// (messages sent from another device linked to the same account).
type Envelope struct {
	Timestamp    int64        `json:"timestamp"`
	Source       string       `json:"source"`
	SourceNumber string       `json:"sourceNumber"`
	SourceUUID   string       `json:"sourceUuid"`
	SourceName   string       `json:"sourceName"`
	DataMessage  *DataMessage `json:"dataMessage"`
	SyncMessage  *SyncMessage `json:"syncMessage"`
}

// SyncMessage wraps a message the account sent from another device.
type SyncMessage struct {
	SentMessage *DataMessage `json:"sentMessage"`
}

// DataMessage is the message body shared by both envelope shapes.
type DataMessage struct {
	Message   string     `json:"message"`
	GroupInfo *GroupInfo `json:"groupInfo"`
}

// GroupInfo identifies the group a message was posted to.
type GroupInfo struct {
	GroupID string `json:"groupId"`
}

// Inbound is the normalized record extracted from one gateway payload.
// GroupID is the raw group identifier; it is empty for non-group messages.
type Inbound struct {
	Timestamp    int64
	SourceName   string
	SourceNumber string
	Message      string
	GroupID      string
}
