package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expiringRedis loses the key between SETNX and GET on the first round.
type expiringRedis struct {
	redis.Cmdable
	setNXCalls int
}

func (r *expiringRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	r.setNXCalls++
	return redis.NewBoolResult(r.setNXCalls > 1, nil)
}

func (r *expiringRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult("", redis.Nil)
}

func TestRedisStoreReservesKeyThatExpiredBeforeRead(t *testing.T) {
	client := &expiringRedis{}
	store := NewRedisStore(client, time.Minute)

	resp, err := store.Begin(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 2, client.setNXCalls)
}

func TestDecodeStored(t *testing.T) {
	_, err := decodeStored(pendingMark)
	assert.ErrorIs(t, err, ErrInFlight)

	resp, err := decodeStored(`{"status_code":201,"content_type":"application/json","body":"e30="}`)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "{}", string(resp.Body))
}
