package unknownsessions

import (
	"fmt"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/keystore"
)

// Coordinator runs on the node that starts discovery.
type Coordinator struct {
	target keyshare.NodeID
}

var _ job.Coordinator[keyshare.NodeID, keyshare.SessionSet, Report] = (*Coordinator)(nil)

// NewCoordinator investigates target, usually but not necessarily the
// coordinating node itself.
func NewCoordinator(target keyshare.NodeID) *Coordinator {
	return &Coordinator{target: target}
}

// Target returns the node under investigation.
func (c *Coordinator) Target() keyshare.NodeID {
	return c.target
}

// PrepareRequest returns the target for every peer.
func (c *Coordinator) PrepareRequest(_ keyshare.NodeID, _ keyshare.NodeSet) (keyshare.NodeID, error) {
	return c.target, nil
}

// CheckResponse accepts every answer.
func (c *Coordinator) CheckResponse(_ keyshare.SessionSet) (job.ResponseAction, error) {
	return job.Accept, nil
}

// ComputeResponse merges the admitted answers into a Report.
func (c *Coordinator) ComputeResponse(responses map[keyshare.NodeID]keyshare.SessionSet) (Report, error) {
	report := make(Report)
	for node, sessions := range responses {
		for _, session := range sessions {
			report.add(session, node)
		}
	}
	return report, nil
}

// Responder answers discovery requests from the local key store.
type Responder struct {
	view keystore.View
}

var _ job.Responder[keyshare.NodeID, keyshare.SessionSet] = (*Responder)(nil)

// NewResponder answers from view, which is only ever read.
func NewResponder(view keystore.View) *Responder {
	return &Responder{view: view}
}

// ProcessRequest returns every locally stored session whose record does
// not list target as a shareholder. A store failure aborts the scan and
// is returned wrapped.
func (r *Responder) ProcessRequest(target keyshare.NodeID) (job.RequestAction[keyshare.SessionSet], error) {
	missing := keyshare.SessionSet{}

	err := r.view.Iterate(func(id keyshare.SessionID, rec *keyshare.Record) error {
		if _, ok := rec.ShareIndexOf(target); !ok {
			missing.Insert(id)
		}
		return nil
	})
	if err != nil {
		return job.RequestAction[keyshare.SessionSet]{}, fmt.Errorf("unknownsessions: scan key store: %w", err)
	}

	return job.Respond(missing), nil
}
