package snowflake

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// Node wraps snowflake.Node to abstract the dependency. Generated IDs are
// used for promotion run identifiers and other durable records.
type Node struct {
	*snowflake.Node
}

// NewNode builds a node using SNOWFLAKE_NODE_ID when set, defaulting to 1.
// Distributed deployments must assign distinct node IDs.
func NewNode() (*Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			nodeID = parsed
		}
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &Node{node}, nil
}

// GenerateID returns a new snowflake ID as int64.
func (n *Node) GenerateID() int64 {
	return n.Generate().Int64()
}

// ParseID parses a string ID into an int64.
func ParseID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}
