package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceHookReadsHeader(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}

	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "risk.refresh", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFromContext(ctx))
	_, ok := StartTimeFromContext(ctx)
	assert.True(t, ok)
}

func TestTraceHookWithoutHeader(t *testing.T) {
	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "risk.refresh", kafka.Message{}, nil)
	require.NoError(t, err)
	assert.Empty(t, TraceIDFromContext(ctx))
}

func TestHookChainOrderAndPanic(t *testing.T) {
	var order []string
	var errs int
	first := HookFuncs{
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "first") },
		Err:   func(context.Context, string, kafka.Message, []byte, error) { errs++ },
	}
	second := HookFuncs{
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "second") },
	}
	chain := NewHookChain(first, nil, second)

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	assert.Equal(t, []string{"second", "first"}, order)

	boom := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		},
	}
	chain = NewHookChain(first, boom)
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var hookErr *HookError
	require.True(t, errors.As(err, &hookErr))
	assert.Equal(t, "ERR_PANIC", hookErr.Code)
	assert.Equal(t, 1, errs)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue(map[string]int{"window": 252})
	require.NoError(t, err)
	assert.JSONEq(t, `{"window":252}`, string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, parseCompression("gzip"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Snappy, parseCompression(""))
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	assert.LessOrEqual(t, backoffWithJitter(0, 0, 0), 50*time.Millisecond)
}
