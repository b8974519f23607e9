package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// NewNode returns the snowflake node used for append-only row ids.
func NewNode() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		zap.L().Error("failed to init snowflake node", zap.Error(err))
		return nil, err
	}
	return node, nil
}
