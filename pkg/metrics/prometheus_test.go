package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordRun("ok")
	r.RecordRun("ok")
	r.RecordAsset("fitted")
	r.RecordAsset("region_other")
	r.RecordError("store")
	r.SetAssetsFitted(7)
	r.SetLastRun(time.Unix(1700000000, 0))
	r.ObserveAPI("/api/betas", 10*time.Millisecond, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.assetsTotal.WithLabelValues("region_other")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.assetsFitted))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.apiErrors.WithLabelValues("/api/betas")))
}
