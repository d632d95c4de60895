package job

import (
	"context"
	"fmt"

	"github.com/f3rmion/keyserver/keyshare"
)

// Coordinator is the initiating side of a job.
type Coordinator[Req, Resp, Result any] interface {
	// PrepareRequest returns the request for node, one of nodes.
	PrepareRequest(node keyshare.NodeID, nodes keyshare.NodeSet) (Req, error)
	// CheckResponse decides whether an answer enters the result.
	CheckResponse(resp Resp) (ResponseAction, error)
	// ComputeResponse merges every admitted answer, keyed by responder.
	ComputeResponse(responses map[keyshare.NodeID]Resp) (Result, error)
}

// Responder is the answering side of a job.
type Responder[Req, Resp any] interface {
	// ProcessRequest answers req from local state.
	ProcessRequest(req Req) (RequestAction[Resp], error)
}

// Transport delivers a request to a remote responder and returns its action.
type Transport[Req, Resp any] interface {
	Send(ctx context.Context, node keyshare.NodeID, req Req) (RequestAction[Resp], error)
}

// Serve answers one request on the responding node.
func Serve[Req, Resp any](ctx context.Context, r Responder[Req, Resp], req Req) (RequestAction[Resp], error) {
	if err := ctx.Err(); err != nil {
		return RequestAction[Resp]{}, err
	}
	action, err := r.ProcessRequest(req)
	if err != nil {
		return RequestAction[Resp]{}, fmt.Errorf("job: process request: %w", err)
	}
	return action, nil
}

// RequestAction is a responder's reply: a response, or a refusal that may
// still carry a payload explaining it.
type RequestAction[Resp any] struct {
	Response Resp
	rejected bool
}

// Respond wraps a response.
func Respond[Resp any](resp Resp) RequestAction[Resp] {
	return RequestAction[Resp]{Response: resp}
}

// RejectRequest wraps a refusal.
func RejectRequest[Resp any](resp Resp) RequestAction[Resp] {
	return RequestAction[Resp]{Response: resp, rejected: true}
}

// Rejected reports whether the responder refused the request.
func (a RequestAction[Resp]) Rejected() bool {
	return a.rejected
}

// ResponseAction is a coordinator's verdict on one answer.
type ResponseAction int

const (
	// Accept admits the answer into the result.
	Accept ResponseAction = iota
	// Reject counts the answer as a refusal.
	Reject
	// Ignore drops the answer without counting it either way.
	Ignore
)

func (a ResponseAction) String() string {
	switch a {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}
