package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{Host: "ch", Port: 9000, Database: "factorlens", User: "default"}
	WithTimeouts(2*time.Second, 5*time.Second, 0)(&cfg)
	WithAsyncInsert(true, true)(&cfg)
	WithMaxExecutionTime(time.Minute)(&cfg)

	dsn := buildDSN(cfg)
	assert.Contains(t, dsn, "clickhouse://default:@ch:9000/factorlens?")
	assert.Contains(t, dsn, "dial_timeout=2s")
	assert.Contains(t, dsn, "read_timeout=5s")
	assert.Contains(t, dsn, "max_execution_time=60")
	assert.Contains(t, dsn, "async_insert=1")
	assert.Contains(t, dsn, "wait_for_async_insert=1")
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg := ClientConfig{Host: "ch", Port: 8123, Database: "db"}
	WithHTTP(true)(&cfg)
	assert.Equal(t, "http://ch:8123/db", buildDSN(cfg))
}
