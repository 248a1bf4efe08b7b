package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectRedis_Unavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cache, err := ConnectRedis(ctx, RedisOptions{Addr: "127.0.0.1:1", TTL: time.Minute})
	assert.Error(t, err)
	assert.Nil(t, cache)
	assert.Contains(t, err.Error(), "redis not available")
}

func TestMetadataKey(t *testing.T) {
	assert.Equal(t, "metadata:https://youtu.be/x", metadataKey("https://youtu.be/x"))
}
