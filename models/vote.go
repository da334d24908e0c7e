package models

// Transaction types carried in a block.
const (
	TxTypeVote    = "vote"
	TxTypeGenesis = "genesis"
)

// VoteRecord is a single admitted vote. Records are immutable once created;
// a record moves from the pending pool into a mined block exactly once.
type VoteRecord struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	VoterID   string `json:"voter_id,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	CastAt    int64  `json:"cast_at,omitempty"`
}

// GenesisMarker is the single fixed transaction carried by block 0.
func GenesisMarker() VoteRecord {
	return VoteRecord{Type: TxTypeGenesis}
}

// IsVote reports whether the record is a real vote rather than the
// genesis marker.
func (v VoteRecord) IsVote() bool {
	return v.Type == TxTypeVote
}
