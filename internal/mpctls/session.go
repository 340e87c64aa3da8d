// Package mpctls drives one MPC-TLS session: a prover role that owns the
// real TCP socket to the origin, and a verifier role that observes only
// over an in-process channel and independently commits to the session's
// metadata and body. See SPEC_FULL.md §11.5 and DESIGN.md for the
// grounding of the design choices below.
package mpctls

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tls-oracle/prover/internal/oracleerr"
	"github.com/tls-oracle/prover/internal/sessionrequest"
)

// maxResponseBodyBytes is the response-body ceiling, 17 blocks of 31
// bytes; it equals internal/witness.MaxResponseBodyBytes, which cannot be
// imported here because internal/witness imports this package.
const maxResponseBodyBytes = 17 * 31

// exporterLabel is the RFC 5705 exporter label used to derive the
// verifier role's key share from the negotiated TLS 1.3 traffic secret.
// A role that has not participated in the live handshake cannot produce
// this value, which is what stands in here for "the verifier holds a key
// share" (spec.md §4.2 point 2) now that both roles are co-located in one
// process (spec.md §9, "In-process MPC roles").
const exporterLabel = "tls-oracle-mpc-verifier-share"

// Transcript is the outcome of one MPC-TLS session (spec.md §3).
type Transcript struct {
	ServerName           string
	TimestampUnixSeconds uint64
	ResponseBodyBytes    []byte

	// VerifierCommitments are the opaque commitments the verifier role
	// computed independently over the channel-delivered data; they are
	// not public signals (those are computed later, from this
	// Transcript, by internal/witness) but they are what gates the
	// VerifierCommitted state transition.
	VerifierCommitments VerifierCommitments
}

// VerifierCommitments are the verifier role's private commitments
// (c_sn, c_ts, c_body in spec.md §4.2 point 3).
type VerifierCommitments struct {
	ServerName [32]byte
	Timestamp  [32]byte
	Body       [32]byte
}

// Driver runs one MPC-TLS session end to end.
type Driver struct {
	Deadline time.Duration
}

// NewDriver constructs a Driver with the given global session deadline
// (spec.md §4.2 default 60s, configured by callers via internal/config).
func NewDriver(deadline time.Duration) *Driver {
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	return &Driver{Deadline: deadline}
}

// Run co-runs the prover and verifier roles for one request against one
// resolved endpoint set, returning the Transcript once both roles report
// clean termination (spec.md §4.2 point 5).
func (d *Driver) Run(ctx context.Context, correlationID string, req *sessionrequest.Request, endpoints []sessionrequest.ResolvedEndpoint) (*Transcript, *oracleerr.Error) {
	if len(endpoints) == 0 {
		return nil, oracleerr.New(oracleerr.Internal, correlationID, "no resolved endpoints supplied")
	}

	ctx, cancel := context.WithTimeout(ctx, d.Deadline)
	defer cancel()

	ch := newChannel()

	type proverResult struct {
		transcript *Transcript
		err        *oracleerr.Error
	}
	proverDone := make(chan proverResult, 1)
	verifierDone := make(chan *oracleerr.Error, 1)

	go func() {
		t, err := d.runProver(ctx, correlationID, req, endpoints[0], ch)
		proverDone <- proverResult{t, err}
	}()
	go func() {
		verifierDone <- d.runVerifier(ctx, correlationID, ch)
	}()

	pr := <-proverDone
	verr := <-verifierDone

	if pr.err != nil {
		return nil, pr.err
	}
	if verr != nil {
		return nil, verr
	}
	if ctx.Err() == context.DeadlineExceeded {
		return nil, oracleerr.New(oracleerr.Timeout, correlationID, "mpc-tls session deadline exceeded")
	}
	return pr.transcript, nil
}

// runProver owns the TCP socket: it performs the TLS 1.3 handshake, the
// single HTTP round trip, derives the verifier's key share via the TLS
// exporter, and reports the transcript data across the channel so the
// verifier role can commit to it independently. Its progress through
// spec.md §4.2's state machine is tracked by a dedicated sessionState.
func (d *Driver) runProver(ctx context.Context, correlationID string, req *sessionrequest.Request, endpoint sessionrequest.ResolvedEndpoint, ch *channel) (*Transcript, *oracleerr.Error) {
	state := newSessionState()
	addr := net.JoinHostPort(endpoint.IP.String(), fmt.Sprintf("%d", endpoint.Port))

	var capturedConn *tls.Conn
	var dialed bool
	dialer := &net.Dialer{}

	transport := &http.Transport{
		DisableKeepAlives: true,
		DialTLSContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			dialed = true
			tlsConn := tls.Client(rawConn, &tls.Config{
				ServerName: req.ServerName,
				MinVersion: tls.VersionTLS13,
				NextProtos: []string{"http/1.1"},
			})
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				rawConn.Close()
				return nil, err
			}
			capturedConn = tlsConn
			return tlsConn, nil
		},
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL.String(), bodyReader)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.Internal, correlationID, "building origin request", err)
	}
	httpReq.Host = req.ServerName
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// The TLS 1.3 handshake runs inside DialTLSContext, invoked from
	// client.Do below; advance before issuing the request since that call
	// is what drives the handshake to completion.
	state.advance(HandshakeInProgress)

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			state.fail(StateTimeout)
			return nil, oracleerr.Wrap(oracleerr.Timeout, correlationID, "origin exchange timed out", err)
		}
		if !dialed {
			state.fail(HandshakeFailed)
			return nil, oracleerr.Wrap(oracleerr.OriginUnreachable, correlationID, "connecting to origin", err)
		}
		state.fail(HandshakeFailed)
		return nil, oracleerr.Wrap(oracleerr.TlsFailure, correlationID, "tls handshake or http exchange failed", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		state.fail(OriginProtocolError)
		return nil, oracleerr.Wrap(oracleerr.Internal, correlationID, "reading origin response body", err)
	}
	if len(body) > maxResponseBodyBytes {
		state.fail(SizeExceeded)
		return nil, oracleerr.New(oracleerr.ResponseTooLarge, correlationID, "response body exceeds maximum size")
	}

	if capturedConn == nil {
		state.fail(HandshakeFailed)
		return nil, oracleerr.New(oracleerr.TlsFailure, correlationID, "no tls connection established")
	}
	cs := capturedConn.ConnectionState()
	if cs.Version != tls.VersionTLS13 {
		state.fail(HandshakeFailed)
		return nil, oracleerr.New(oracleerr.TlsFailure, correlationID, "origin did not negotiate tls 1.3")
	}

	verifierShare, err := capturedConn.ExportKeyingMaterial(exporterLabel, []byte(correlationID), 32)
	if err != nil {
		state.fail(HandshakeFailed)
		return nil, oracleerr.Wrap(oracleerr.TlsFailure, correlationID, "deriving verifier key share", err)
	}

	timestamp := uint64(time.Now().Unix())

	// The handshake, request, and response are all complete at this point.
	state.advance(ApplicationExchange)

	ch.toVerifier <- roleMessage{
		kind:          evExchangeDone,
		serverName:    req.ServerName,
		timestamp:     timestamp,
		responseBody:  body,
		verifierShare: verifierShare,
	}

	committed := <-ch.toProver
	if committed.kind == evAbort {
		state.fail(OriginProtocolError)
		return nil, oracleerr.Wrap(oracleerr.MpcProtocolFailure, correlationID, "verifier aborted session", committed.err)
	}
	state.advance(VerifierCommitted)

	// The prover role holds the plaintext directly (it terminated the TLS
	// connection itself), so opening follows immediately once the
	// verifier has committed to it.
	state.advance(PlaintextOpened)
	state.advance(Finished)

	return &Transcript{
		ServerName:           req.ServerName,
		TimestampUnixSeconds: timestamp,
		ResponseBodyBytes:    body,
		VerifierCommitments: VerifierCommitments{
			ServerName: [32]byte(committed.commitServerName),
			Timestamp:  [32]byte(committed.commitTimestamp),
			Body:       [32]byte(committed.commitBody),
		},
	}, nil
}

// runVerifier reads only from the channel (spec.md §4.2 point 5) and
// independently computes commitments over whatever the prover reported,
// in the same sense a separate, un-trusted process would: the commitment
// is a function of the channel-delivered data and the exporter-derived
// key share alone.
func (d *Driver) runVerifier(ctx context.Context, correlationID string, ch *channel) *oracleerr.Error {
	state := newSessionState()

	select {
	case <-ctx.Done():
		state.fail(StateTimeout)
		return oracleerr.New(oracleerr.Timeout, correlationID, "verifier role timed out waiting for exchange")
	case msg := <-ch.toVerifier:
		state.advance(HandshakeInProgress)

		if msg.kind != evExchangeDone {
			state.fail(OriginProtocolError)
			return oracleerr.New(oracleerr.MpcProtocolFailure, correlationID, "unexpected message before exchange completion")
		}
		if len(msg.verifierShare) == 0 {
			state.fail(OriginProtocolError)
			return oracleerr.New(oracleerr.MpcProtocolFailure, correlationID, "missing verifier key share")
		}
		state.advance(ApplicationExchange)

		commitServerName := hmacCommit(msg.verifierShare, []byte("server_name"), []byte(msg.serverName))
		commitTimestamp := hmacCommit(msg.verifierShare, []byte("timestamp"), uint64LE(msg.timestamp))
		commitBody := hmacCommit(msg.verifierShare, []byte("body"), msg.responseBody)
		state.advance(VerifierCommitted)

		ch.toProver <- roleMessage{
			kind:             evVerifierCommitted,
			commitServerName: commitServerName,
			commitTimestamp:  commitTimestamp,
			commitBody:       commitBody,
		}

		// The verifier's own plaintext view is the channel-delivered body
		// itself; it is already open once the commitments above are
		// computed over it.
		state.advance(PlaintextOpened)
		state.advance(Finished)
		return nil
	}
}

func uint64LE(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// hmacCommit binds label and data to the verifier's key share using a
// plain SHA-256 of their concatenation; the key share itself is only
// derivable by a party that participated in the live TLS 1.3 handshake,
// which is what makes this commitment meaningful rather than the SHA-256
// construction itself.
func hmacCommit(share, label, data []byte) []byte {
	h := sha256.New()
	h.Write(share)
	h.Write(label)
	h.Write(data)
	sum := h.Sum(nil)
	out := make([]byte, 32)
	copy(out, sum)
	return out
}
