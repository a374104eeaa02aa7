package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "FactorLens/pkg/kafka"
)

func TestRefreshHandler(t *testing.T) {
	ctx := pkgkafka.WithTraceID(context.Background(), "trace-1")
	svc, deps := newTestService(t)
	h := NewRefreshHandler("factorlens.refresh", svc, deps.metrics, nil)
	assert.Equal(t, "factorlens.refresh", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"window":35,"reason":"manual"}`)))
	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, 35, latest.Params.Window)

	require.NoError(t, h.Handle(ctx, nil))
	latest, err = svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, 30, latest.Params.Window)
	assert.Equal(t, int64(2), latest.Version)
}

func TestRefreshHandlerRejects(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService(t)
	h := NewRefreshHandler("factorlens.refresh", svc, deps.metrics, nil)

	assert.Error(t, h.Handle(ctx, []byte(`{not json`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"window":-1}`)))
	assert.Equal(t, 1, deps.metrics.errs["consumer_unmarshal"])

	ok, err := deps.cache.TryLock(ctx, refreshLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, h.Handle(ctx, []byte(`{"window":30}`)), "busy refresh is absorbed")
}
