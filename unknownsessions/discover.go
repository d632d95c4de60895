package unknownsessions

import (
	"context"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
	"github.com/f3rmion/keyserver/keystore"
)

// Transport carries discovery requests to remote responders.
type Transport = job.Transport[keyshare.NodeID, keyshare.SessionSet]

// Discover asks nodes which sessions target is missing. When cfg.Self is
// among nodes and local is non-nil, the local store answers in-process.
func Discover(
	ctx context.Context,
	cfg job.Config,
	target keyshare.NodeID,
	nodes keyshare.NodeSet,
	transport Transport,
	local keystore.View,
) (Report, *job.Summary, error) {
	if cfg.Name == "" {
		cfg.Name = "unknown-sessions"
	}

	var responder job.Responder[keyshare.NodeID, keyshare.SessionSet]
	if local != nil {
		responder = NewResponder(local)
	}

	session := job.NewSession[keyshare.NodeID, keyshare.SessionSet, Report](
		cfg, NewCoordinator(target), transport, responder,
	)
	return session.Run(ctx, nodes)
}
