package models

// Participant is one of the two fixed conversation identities.
type Participant string

const (
	ParticipantA Participant = "a"
	ParticipantB Participant = "b"
)

// Partner returns the other participant.
func (p Participant) Partner() Participant {
	if p == ParticipantA {
		return ParticipantB
	}
	return ParticipantA
}

// Valid reports whether p is one of the two known identities.
func (p Participant) Valid() bool {
	return p == ParticipantA || p == ParticipantB
}

func (p Participant) String() string {
	return string(p)
}
