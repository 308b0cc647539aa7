package models

// StatisticsResponse represents all data plane statistics
type StatisticsResponse struct {
	TotalPackets       uint64 `json:"total_packets"`
	MarkedPackets      uint64 `json:"marked_packets"`
	PrioritizedPackets uint64 `json:"prioritized_packets"`
	PolicyHits         uint64 `json:"policy_hits"`
	PolicyMisses       uint64 `json:"policy_misses"`
}

// PacketStatsResponse represents marking statistics with rates
type PacketStatsResponse struct {
	TotalPackets       uint64  `json:"total_packets"`
	MarkedPackets      uint64  `json:"marked_packets"`
	PrioritizedPackets uint64  `json:"prioritized_packets"`
	MarkRate           float64 `json:"mark_rate"`
	PrioritizeRate     float64 `json:"prioritize_rate"`
}

// PolicyStatsResponse represents policy match statistics
type PolicyStatsResponse struct {
	PolicyHits   uint64  `json:"policy_hits"`
	PolicyMisses uint64  `json:"policy_misses"`
	HitRate      float64 `json:"hit_rate"`
}
