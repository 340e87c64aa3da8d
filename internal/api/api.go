// Package api exposes the three in-scope HTTP endpoints from spec.md §6:
// POST /prove, GET /health, GET /notary-info.
package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tls-oracle/prover/internal/circuit"
	"github.com/tls-oracle/prover/internal/config"
	"github.com/tls-oracle/prover/internal/mpctls"
	"github.com/tls-oracle/prover/internal/notary"
	"github.com/tls-oracle/prover/internal/oracleerr"
	"github.com/tls-oracle/prover/internal/sessionmanager"
	"github.com/tls-oracle/prover/internal/sessionrequest"
	"github.com/tls-oracle/prover/internal/witness"
)

// Server wires the prove pipeline's five stages to the HTTP surface.
type Server struct {
	log zerolog.Logger
	cfg *config.Config

	identity *notary.Identity
	prover   *circuit.Prover
	sessions *sessionmanager.Manager
	driver   *mpctls.Driver
}

// New builds a Server ready to register its routes.
func New(log zerolog.Logger, cfg *config.Config, identity *notary.Identity, prover *circuit.Prover, sessions *sessionmanager.Manager) *Server {
	return &Server{
		log:      log.With().Str("module", "api").Logger(),
		cfg:      cfg,
		identity: identity,
		prover:   prover,
		sessions: sessions,
		driver:   mpctls.NewDriver(cfg.SessionDeadline),
	}
}

// Router builds the gorilla/mux router for this service, per
// SPEC_FULL.md §10.4.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/prove", s.handleProve).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/notary-info", s.handleNotaryInfo).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.log.Error().Err(err).Msg("failed to write health response")
	}
}

func (s *Server) handleNotaryInfo(w http.ResponseWriter, r *http.Request) {
	resp := notaryInfoResponse{
		Pubkey:     s.identity.PubkeySEC1,
		PubkeyHash: s.identity.PubkeyHash.String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("failed to encode notary-info response")
	}
}

type notaryInfoResponse struct {
	Pubkey     []byte `json:"pubkey"`
	PubkeyHash string `json:"pubkeyHash"`
}

type proveRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

type proveResponse struct {
	SourceURL     string       `json:"sourceUrl"`
	ServerName    string       `json:"serverName"`
	Timestamp     uint64       `json:"timestamp"`
	ResponseData  string       `json:"responseData"`
	ProofA        [2]string    `json:"proofA"`
	ProofB        [2][2]string `json:"proofB"`
	ProofC        [2]string    `json:"proofC"`
	PublicSignals [4]string    `json:"publicSignals"`

	NotarySignature string `json:"notarySignature"`
	NotarySigV      byte   `json:"notarySigV"`
}

func (s *Server) handleProve(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	log := s.log.With().Str("correlationId", correlationID).Logger()

	sourceIP := clientIP(r)
	if !s.sessions.Admit(sourceIP) {
		writeError(w, log, oracleerr.New(oracleerr.Internal, correlationID, "server busy"))
		return
	}

	ctx, release := s.sessions.Begin(r.Context(), correlationID)
	defer release()

	var body proveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, log, oracleerr.Wrap(oracleerr.InvalidRequest, correlationID, "malformed request body", err))
		return
	}

	resp, oerr := s.prove(ctx, correlationID, &body)
	if oerr != nil {
		log.Error().Str("kind", string(oerr.Kind)).Err(oerr).Msg("prove failed")
		if oerr.Kind == oracleerr.MpcProtocolFailure {
			s.sessions.Destroy(correlationID)
		}
		writeError(w, log, oerr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode prove response")
	}
}

// prove drives the five-stage pipeline described in spec.md §2.
func (s *Server) prove(ctx context.Context, correlationID string, body *proveRequest) (*proveResponse, *oracleerr.Error) {
	req, oerr := sessionrequest.Validate(s.cfg, correlationID, body.URL, body.Method, body.Headers, nil)
	if oerr != nil {
		return nil, oerr
	}

	endpoints, oerr := sessionrequest.ResolveAndFilter(ctx, s.cfg, sessionrequest.DefaultResolver, correlationID, req)
	if oerr != nil {
		return nil, oerr
	}

	transcript, oerr := s.driver.Run(ctx, correlationID, req, endpoints)
	if oerr != nil {
		return nil, oerr
	}

	digest := notary.Digest(transcript.ServerName, transcript.TimestampUnixSeconds, transcript.ResponseBodyBytes)
	sig := s.identity.Sign(digest)

	w, oerr := witness.Build(correlationID, transcript, s.identity)
	if oerr != nil {
		return nil, oerr
	}

	proof, err := s.prover.GenerateProof(w)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.ProofGenerationFailed, correlationID, "groth16 proving failed", err)
	}

	return &proveResponse{
		SourceURL:       body.URL,
		ServerName:      transcript.ServerName,
		Timestamp:       transcript.TimestampUnixSeconds,
		ResponseData:    hex.EncodeToString(transcript.ResponseBodyBytes),
		ProofA:          proof.A,
		ProofB:          proof.B,
		ProofC:          proof.C,
		PublicSignals:   proof.PublicSignals,
		// spec.md §6 pins notarySignature as base64, unlike responseData.
		NotarySignature: base64.StdEncoding.EncodeToString(append(sig.R[:], sig.S[:]...)),
		NotarySigV:      sig.RecoveryV,
	}, nil
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err *oracleerr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	if encErr := json.NewEncoder(w).Encode(map[string]string{
		"kind":          string(err.Kind),
		"message":       err.Message,
		"correlationId": err.CorrelationID,
	}); encErr != nil {
		log.Error().Err(encErr).Msg("failed to encode error response")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func newCorrelationID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
