package core

import (
	"encoding/json"
	"fmt"
)

// PoolStats summarizes hit/miss behavior for the engine's pooled objects.
type PoolStats struct {
	Connection PoolTierStats `json:"connection"`
	Response   PoolTierStats `json:"response"`
}

// PoolTierStats mirrors one pool's Get/Put counters.
type PoolTierStats struct {
	Gets    uint64  `json:"gets"`
	Puts    uint64  `json:"puts"`
	HitRate float64 `json:"hit_rate"`
}

// GetPoolStats returns statistics for the connection-slot and response
// pools.
func (e *Engine) GetPoolStats() PoolStats {
	gets, puts, hitRate := e.connPool.Stats()
	respStats := e.responsePool.Stats()

	return PoolStats{
		Connection: PoolTierStats{Gets: gets, Puts: puts, HitRate: hitRate},
		Response:   PoolTierStats{Gets: respStats.Gets, Puts: respStats.Puts, HitRate: respStats.HitRate},
	}
}

// GetPoolStatsJSON returns pool statistics as a JSON string.
func (e *Engine) GetPoolStatsJSON() string {
	data, _ := json.MarshalIndent(e.GetPoolStats(), "", "  ")
	return string(data)
}

// GetPoolStatsText returns pool statistics as human-readable text.
func (e *Engine) GetPoolStatsText() string {
	s := e.GetPoolStats()
	return fmt.Sprintf(`Pool Statistics
===============

Connection Slots:
  Gets:     %d
  Puts:     %d
  Hit Rate: %.2f%%

Responses:
  Gets:     %d
  Puts:     %d
  Hit Rate: %.2f%%
`,
		s.Connection.Gets, s.Connection.Puts, s.Connection.HitRate*100,
		s.Response.Gets, s.Response.Puts, s.Response.HitRate*100,
	)
}
