package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"delivery-marketplace/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewGenerator),
)

type Generator interface {
	NextOrderNumber(ctx context.Context) (string, error)
}

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

// NewGenerator uses a redis daily counter when redis is available and a
// random code otherwise.
func NewGenerator(p Params) Generator {
	if p.Redis == nil {
		return &RandomGenerator{now: time.Now}
	}
	return &RedisGenerator{rdb: p.Redis, now: time.Now}
}

type RedisGenerator struct {
	rdb *redis.Client
	now func() time.Time
}

func (g *RedisGenerator) NextOrderNumber(ctx context.Context) (string, error) {
	today := g.now().UTC().Format("060102")
	key := rediskey.OrderNumberKey(today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		_ = g.rdb.Expire(ctx, key, 48*time.Hour).Err()
	}

	// Base36, at least 3 characters.
	encodedSeq := strings.ToUpper(fmt.Sprintf("%03s", strconv.FormatInt(seq, 36)))

	randSuffix, err := randomAlphaNumeric(2)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("ORD-%s-%s%s", today, encodedSeq, randSuffix), nil
}

type RandomGenerator struct {
	now func() time.Time
}

func (g *RandomGenerator) NextOrderNumber(context.Context) (string, error) {
	code, err := randomAlphaNumeric(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%s", g.now().UTC().Format("060102"), code), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
