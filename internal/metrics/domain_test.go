package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterActiveMounts_PollsCountAtScrape(t *testing.T) {
	count := 2.0
	reg := prometheus.NewRegistry()
	RegisterActiveMounts(reg, func() float64 { return count })

	gather := func() float64 {
		mfs, err := reg.Gather()
		require.NoError(t, err)
		require.Len(t, mfs, 1)
		assert.Equal(t, "borgdesk_active_mounts", mfs[0].GetName())
		return mfs[0].GetMetric()[0].GetGauge().GetValue()
	}

	assert.Equal(t, 2.0, gather())

	// Records closed outside the manager still show up on the next scrape.
	count = 0
	assert.Equal(t, 0.0, gather())
}
