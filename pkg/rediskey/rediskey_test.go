package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "ratelimit:10.0.0.1", RateLimitKey("10.0.0.1"))
	require.Equal(t, "seq:order:261014", OrderNumberKey("261014"))
}
