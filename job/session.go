package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/logger"
)

var (
	// ErrNoNodes is returned when a job is started without peers.
	ErrNoNodes = errors.New("job: no nodes to query")

	// ErrNotEnoughResponses is returned when fewer answers than
	// Config.MinResponses were admitted.
	ErrNotEnoughResponses = errors.New("job: not enough responses")

	// ErrRejected is returned when refusals alone make the minimum unreachable.
	ErrRejected = errors.New("job: rejected by too many nodes")
)

// Config tunes a Session.
type Config struct {
	// Name labels log lines.
	Name string
	// Self is the local node. When it is among the queried nodes and a
	// local responder is set, it is answered in-process.
	Self keyshare.NodeID
	// MinResponses is the number of admitted answers required.
	// Zero requires every queried node to answer.
	MinResponses int
	// CollectTimeout bounds how long answers are awaited. When it fires
	// the result is computed from the answers admitted so far. Zero waits
	// for every node.
	CollectTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Summary records how each queried node took part in a run.
type Summary struct {
	Accepted keyshare.NodeSet
	Rejected keyshare.NodeSet
	Ignored  keyshare.NodeSet
	Failed   map[keyshare.NodeID]error
	TimedOut keyshare.NodeSet
}

// Session drives one coordinator over a transport.
type Session[Req, Resp, Result any] struct {
	cfg         Config
	coordinator Coordinator[Req, Resp, Result]
	transport   Transport[Req, Resp]
	local       Responder[Req, Resp]
	log         *slog.Logger
}

// NewSession creates a driver. local may be nil, in which case the local
// node, if queried, goes through the transport like any other.
func NewSession[Req, Resp, Result any](
	cfg Config,
	coordinator Coordinator[Req, Resp, Result],
	transport Transport[Req, Resp],
	local Responder[Req, Resp],
) *Session[Req, Resp, Result] {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Name != "" {
		log = log.With("job", cfg.Name)
	}

	return &Session[Req, Resp, Result]{
		cfg:         cfg,
		coordinator: coordinator,
		transport:   transport,
		local:       local,
		log:         log,
	}
}

// reply is one node's outcome.
type reply[Resp any] struct {
	node   keyshare.NodeID
	action RequestAction[Resp]
	err    error
}

// Run queries nodes and returns the merged result.
func (s *Session[Req, Resp, Result]) Run(ctx context.Context, nodes keyshare.NodeSet) (Result, *Summary, error) {
	var zero Result
	start := time.Now()

	nodes = keyshare.NewNodeSet(nodes...)
	if len(nodes) == 0 {
		return zero, nil, ErrNoNodes
	}
	if err := ctx.Err(); err != nil {
		return zero, nil, err
	}

	need := s.cfg.MinResponses
	if need <= 0 {
		need = len(nodes)
	}
	if need > len(nodes) {
		return zero, nil, fmt.Errorf("%w: need %d, only %d nodes", ErrNotEnoughResponses, need, len(nodes))
	}

	requests := make(map[keyshare.NodeID]Req, len(nodes))
	for _, node := range nodes {
		req, err := s.coordinator.PrepareRequest(node, nodes)
		if err != nil {
			return zero, nil, fmt.Errorf("job: prepare request for %s: %w", node, err)
		}
		requests[node] = req
	}

	collectCtx, cancel := s.collectContext(ctx)
	defer cancel()

	replies := make(chan reply[Resp], len(nodes))
	for _, node := range nodes {
		go func(node keyshare.NodeID, req Req) {
			action, err := s.dispatch(collectCtx, node, req)
			replies <- reply[Resp]{node: node, action: action, err: err}
		}(node, requests[node])
	}

	summary := &Summary{Failed: make(map[keyshare.NodeID]error)}
	responses := make(map[keyshare.NodeID]Resp, len(nodes))
	pending := slices.Clone(nodes)

collect:
	for len(pending) > 0 {
		select {
		case r := <-replies:
			pending = removeNode(pending, r.node)
			if r.err != nil && collectCtx.Err() != nil {
				if ctx.Err() != nil {
					return zero, summary, ctx.Err()
				}
				summary.TimedOut.Insert(r.node)
			} else if err := s.admit(r, responses, summary); err != nil {
				return zero, summary, err
			}

			reachable := len(responses) + len(pending)
			if reachable < need {
				if len(summary.Rejected) > len(nodes)-need {
					return zero, summary, fmt.Errorf("%w: %d of %d refused", ErrRejected, len(summary.Rejected), len(nodes))
				}
				return zero, summary, fmt.Errorf("%w: at most %d of %d required", ErrNotEnoughResponses, reachable, need)
			}

		case <-collectCtx.Done():
			if ctx.Err() != nil {
				return zero, summary, ctx.Err()
			}
			for _, n := range pending {
				summary.TimedOut.Insert(n)
			}
			break collect
		}
	}

	if len(responses) < need {
		return zero, summary, fmt.Errorf("%w: got %d, need %d", ErrNotEnoughResponses, len(responses), need)
	}

	result, err := s.coordinator.ComputeResponse(responses)
	if err != nil {
		return zero, summary, fmt.Errorf("job: compute response: %w", err)
	}

	s.log.Info("job completed",
		"nodes", len(nodes),
		"accepted", len(summary.Accepted),
		"rejected", len(summary.Rejected),
		"failed", len(summary.Failed),
		"timed_out", len(summary.TimedOut),
		logger.Timed(start),
	)

	return result, summary, nil
}

func (s *Session[Req, Resp, Result]) collectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CollectTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.CollectTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session[Req, Resp, Result]) dispatch(ctx context.Context, node keyshare.NodeID, req Req) (RequestAction[Resp], error) {
	if node == s.cfg.Self && s.local != nil {
		return Serve(ctx, s.local, req)
	}
	return s.transport.Send(ctx, node, req)
}

// admit classifies one reply. Only a failing CheckResponse aborts the run.
func (s *Session[Req, Resp, Result]) admit(r reply[Resp], responses map[keyshare.NodeID]Resp, summary *Summary) error {
	if r.err != nil {
		s.log.Warn("node failed", "node", r.node, "err", r.err)
		summary.Failed[r.node] = r.err
		return nil
	}

	if r.action.Rejected() {
		s.log.Debug("node refused request", "node", r.node)
		summary.Rejected.Insert(r.node)
		return nil
	}

	verdict, err := s.coordinator.CheckResponse(r.action.Response)
	if err != nil {
		return fmt.Errorf("job: check response from %s: %w", r.node, err)
	}

	s.log.Debug("response checked", "node", r.node, "action", verdict)

	switch verdict {
	case Accept:
		responses[r.node] = r.action.Response
		summary.Accepted.Insert(r.node)
	case Reject:
		summary.Rejected.Insert(r.node)
	default:
		summary.Ignored.Insert(r.node)
	}
	return nil
}

func removeNode(set keyshare.NodeSet, node keyshare.NodeID) keyshare.NodeSet {
	for i, n := range set {
		if n == node {
			return append(set[:i], set[i+1:]...)
		}
	}
	return set
}
