package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsTableIncrement(t *testing.T) {
	table := NewMetricsTable()

	table.Increment("requests", 1)
	table.Increment("requests", 2.5)
	table.Increment("balance", -4)

	assert.Equal(t, 3.5, table.Get("requests"))
	assert.Equal(t, -4.0, table.Get("balance"))
	assert.Zero(t, table.Get("missing"))
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"balance", "requests"}, table.Names())
}

func TestMetricsTableSnapshotIsIndependent(t *testing.T) {
	table := NewMetricsTable()
	table.Increment("a", 1)

	snap := table.Snapshot()
	table.Increment("a", 1)
	table.Increment("b", 1)

	assert.Equal(t, map[string]float64{"a": 1}, snap)

	snap["a"] = 100
	assert.Equal(t, 2.0, table.Get("a"))

	table.Reset()
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, map[string]float64{"a": 100}, snap)
}
