package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLens/internal/domain/models"
)

func TestBetaMessages(t *testing.T) {
	run := sampleRun("run-9", 3)
	msgs := BetaMessages(run, func(a string) models.Region {
		if a == "0700.HK" {
			return models.RegionHK
		}
		return models.RegionJP
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("0700.HK"), msgs[0].Key)
	assert.Equal(t, "run-9", msgs[0].TraceID)
	m, ok := msgs[1].Value.(betaMessage)
	require.True(t, ok)
	assert.Equal(t, "run-9", m.RunID)
	assert.Equal(t, int64(3), m.Version)
	assert.Equal(t, "JP", m.Region)
	assert.Equal(t, "2024-05-02", m.Date)
	assert.InDelta(t, 0.79, m.Betas["^N225"], 1e-12)
}

func TestArchiveKey(t *testing.T) {
	run := sampleRun("run-9", 3)
	assert.Equal(t, "factorlens/runs/2024/05/03/run-9.json", ArchiveKey("factorlens/runs", run))
	assert.Equal(t, "2024/05/03/run-9.json", ArchiveKey("", run))
}
