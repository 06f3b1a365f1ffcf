package coordinator

import (
	"time"

	"github.com/shaiso/Launchpad/internal/tokens"
	"github.com/shaiso/Launchpad/internal/workflow"
)

func tokensEntry(runID string, node *workflow.Node) tokens.Entry {
	return tokens.Entry{
		RunID:     runID,
		NodeID:    node.ID,
		Resource:  node.Resource,
		CreatedAt: time.Now().UTC(),
	}
}
