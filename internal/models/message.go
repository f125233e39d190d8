package models

// Message is a single relayed message between the two participants.
type Message struct {
	ID        string      `json:"id"`
	LocalID   string      `json:"local_id,omitempty"`
	Text      string      `json:"text"`
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Delivered bool        `json:"delivered"`
	Read      bool        `json:"read"`
}
