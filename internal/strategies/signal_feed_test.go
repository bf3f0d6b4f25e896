package strategies

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptouniverse/discovery/pkg/redis"
)

func TestSignalFeedEvaluator(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	evaluator := NewSignalFeedEvaluator("options", redis.NewFromClient(rdb), testLogger())

	payload := `[
		{"symbol": "BTC/USDT", "type": "options", "confidence": 68, "action": "buy", "take_profit": null},
		{"symbol": "SHIB/USDT", "type": "options", "confidence": 75, "action": "buy"}
	]`
	mock.ExpectGet(SignalFeedKey("options")).SetVal(payload)

	opportunities, err := evaluator.Evaluate(context.Background(), "u1", testUniverse("BTC/USDT", "ETH/USDT"))
	require.NoError(t, err)
	require.Len(t, opportunities, 1, "signals outside the universe are dropped")
	assert.Equal(t, "BTC/USDT", opportunities[0].Symbol)
	assert.Nil(t, opportunities[0].TakeProfit)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignalFeedEvaluator_Unpublished(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	evaluator := NewSignalFeedEvaluator("pairs_trading", redis.NewFromClient(rdb), testLogger())

	mock.ExpectGet(SignalFeedKey("pairs_trading")).RedisNil()

	opportunities, err := evaluator.Evaluate(context.Background(), "u1", testUniverse("BTC/USDT"))
	require.NoError(t, err, "an unpublished feed is an empty result, not an error")
	assert.Empty(t, opportunities)
}
