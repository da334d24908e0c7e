package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"votechain/blockchain"
	"votechain/models"
	"votechain/registry"
	"votechain/service"
)

type RegisterRequest struct {
	VoterID string `json:"voter_id"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type VoteRequest struct {
	VoterID   string `json:"voter_id"`
	Token     string `json:"token"`
	Candidate string `json:"candidate"`
}

type VoteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Receipt string `json:"receipt,omitempty"`
}

type ResultsResponse struct {
	Results      map[string]int `json:"results"`
	TotalVotes   int            `json:"total_votes"`
	PendingVotes int            `json:"pending_votes"`
}

type ChainResponse struct {
	Blocks       []models.Block `json:"blocks"`
	PendingCount int            `json:"pending_count"`
	TotalVotes   int            `json:"total_votes"`
}

type StatusResponse struct {
	Voters map[string]service.VoterStatus `json:"voters"`
}

type MineResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type CandidatesResponse struct {
	Candidates []string `json:"candidates"`
}

// Server is the HTTP layer over the voting service. It holds no voting state
// of its own; every request goes through the service's operations.
type Server struct {
	svc *service.VotingService
}

func NewServer(svc *service.VotingService) *Server {
	return &Server{svc: svc}
}

// Handler returns the API routes on a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/vote", s.handleVote)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/chain", s.handleChain)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/mine", s.handleMine)
	mux.HandleFunc("/api/validate", s.handleValidate)
	mux.HandleFunc("/api/candidates", s.handleCandidates)
	return mux
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.VoterID == "" {
		writeJSON(w, http.StatusBadRequest, RegisterResponse{Message: "voter_id is required"})
		return
	}

	token, err := s.svc.RegisterVoter(req.VoterID)
	if err != nil {
		writeJSON(w, errorStatus(err), RegisterResponse{Message: userMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{
		Success: true,
		Message: fmt.Sprintf("Voter %s registered", req.VoterID),
		Token:   token,
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Failed to decode vote request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.svc.CastVote(req.VoterID, req.Token, req.Candidate)
	if err != nil {
		writeJSON(w, errorStatus(err), VoteResponse{Message: userMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, VoteResponse{
		Success: true,
		Message: "Vote cast successfully! It will be added to the blockchain when mined.",
		Receipt: record.ID,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, pending, total := s.svc.Chain()
	writeJSON(w, http.StatusOK, ResultsResponse{
		Results:      s.svc.Results(),
		TotalVotes:   total,
		PendingVotes: pending,
	})
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blocks, pending, total := s.svc.Chain()
	writeJSON(w, http.StatusOK, ChainResponse{
		Blocks:       blocks,
		PendingCount: pending,
		TotalVotes:   total,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Voters: s.svc.Status()})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	block, err := s.svc.MineNow()
	if errors.Is(err, blockchain.ErrNothingToMine) {
		writeJSON(w, http.StatusOK, MineResponse{Message: "No votes to mine"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, MineResponse{Message: userMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, MineResponse{
		Success: true,
		Message: fmt.Sprintf("Mined %d votes into block #%d", len(block.Transactions), block.Index),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.svc.Validate(); err != nil {
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, CandidatesResponse{Candidates: s.svc.Candidates()})
}

// errorStatus maps the voting error taxonomy to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrAlreadyRegistered), errors.Is(err, service.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNotRegistered), errors.Is(err, registry.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidCandidate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// userMessage strips wrapping context so clients see the stable message of
// the underlying sentinel.
func userMessage(err error) string {
	return errors.Cause(err).Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
