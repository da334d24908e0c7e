package models

// Voter is a registered participant. HasVoted transitions false to true
// exactly once, through a successful vote admission.
type Voter struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	HasVoted bool   `json:"has_voted"`
}
