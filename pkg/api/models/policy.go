package models

// PolicyRequest represents a policy creation/update request. Optional
// fields use pointers so that omission and a meaningful zero value (such as
// DSCP 0) can be told apart.
type PolicyRequest struct {
	PolicyID     int     `json:"policy_id" binding:"required"`
	Direction    string  `json:"direction" binding:"required,oneof=uplink downlink"`
	DSCP         *int    `json:"dscp,omitempty"`
	UserPriority *int    `json:"user_priority,omitempty"`
	SrcAddr      string  `json:"src_addr,omitempty"`
	DstAddr      string  `json:"dst_addr,omitempty"`
	SrcPort      *int    `json:"src_port,omitempty"`
	Protocol     string  `json:"protocol,omitempty" binding:"omitempty,oneof=tcp udp esp any"`
	DstPortStart *int    `json:"dst_port_start,omitempty"`
	DstPortEnd   *int    `json:"dst_port_end,omitempty"`
}

// PolicyResponse represents a policy in API responses
type PolicyResponse struct {
	PolicyID           int    `json:"policy_id"`
	TranslatedPolicyID int    `json:"translated_policy_id"`
	Direction          string `json:"direction"`
	DSCP               int    `json:"dscp"`
	UserPriority       int    `json:"user_priority"`
	SrcAddr            string `json:"src_addr,omitempty"`
	DstAddr            string `json:"dst_addr,omitempty"`
	SrcPort            int    `json:"src_port"`
	Protocol           string `json:"protocol"`
	DstPortStart       *int   `json:"dst_port_start,omitempty"`
	DstPortEnd         *int   `json:"dst_port_end,omitempty"`
}

// PolicyListResponse represents a list of policies
type PolicyListResponse struct {
	Policies []PolicyResponse `json:"policies"`
	Count    int              `json:"count"`
}
