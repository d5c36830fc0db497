package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/module/metrics"
	"github.com/onflow/flow-kernel/storage/cache"
	"github.com/onflow/flow-kernel/storage/inmemory"
	"github.com/onflow/flow-kernel/utils/unittest"
)

func TestSubstateCacheCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCacheCollector(reg)

	c, err := cache.NewSubstateCache(inmemory.NewSubstateDatabase(), collector)
	require.NoError(t, err)

	nodeId := unittest.NodeIdFixture(substate.EntityTypeInternalKeyValueStore)
	for i := 0; i < 3; i++ {
		_, _ = c.GetSubstate(nodeId, substate.MainPartition, substate.FieldKey(0).DBKey())
	}

	expected := `
# HELP storage_cache_hits_total the number of hits for the storage layer cache
# TYPE storage_cache_hits_total counter
storage_cache_hits_total{resource="substate"} 2
# HELP storage_cache_notfounds_total the number of times the queried item was not found in either cache or database
# TYPE storage_cache_notfounds_total counter
storage_cache_notfounds_total{resource="substate"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"storage_cache_hits_total",
		"storage_cache_notfounds_total",
	)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "storage_cache_entries_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
