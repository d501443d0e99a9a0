package event

// CampCreatedPayload captures the payload for camp.created events.
type CampCreatedPayload struct {
	Name            string `json:"name"`
	Organizer       string `json:"organizer"`
	DepositAmount   int64  `json:"deposit_amount"`
	MinParticipants int    `json:"min_participants"`
	MaxParticipants int    `json:"max_participants"`
	SignupDeadline  int64  `json:"signup_deadline"`
	CampEnd         int64  `json:"camp_end"`
	TotalLevels     int    `json:"total_levels"`
}

// CampStatusChangedPayload captures the payload for camp.status_changed events.
type CampStatusChangedPayload struct {
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	// ParticipantCount is set on the signup-close transition.
	ParticipantCount int `json:"participant_count,omitempty"`
	// CompletedCount and FailedCount are set on the closing transition.
	CompletedCount int `json:"completed_count,omitempty"`
	FailedCount    int `json:"failed_count,omitempty"`
}

// CampRefundCompletedPayload captures the payload for camp.refund_completed events.
type CampRefundCompletedPayload struct {
	RefundedCount int   `json:"refunded_count"`
	TotalAmount   int64 `json:"total_amount"`
}

// ParticipantJoinedPayload captures the payload for participant.joined events.
type ParticipantJoinedPayload struct {
	Address string `json:"address"`
	Index   int    `json:"index"`
}

// DepositLockedPayload captures the payload for deposit.locked events.
type DepositLockedPayload struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// DepositRefundedPayload captures the payload for deposit.refunded events.
type DepositRefundedPayload struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
	// Reason distinguishes the failed-camp sweep from a completion claim.
	Reason string `json:"reason"`
}

// DepositPenalizedPayload captures the payload for deposit.penalized events.
type DepositPenalizedPayload struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
	// PoolPolicy records where the forfeited deposit went.
	PoolPolicy string `json:"pool_policy"`
}

// CredentialIssuedPayload captures the payload for credential.issued events.
// Only the commitment scope is recorded, never the secret.
type CredentialIssuedPayload struct {
	Level            int    `json:"level"`
	Mode             string `json:"mode"`
	ParticipantScope string `json:"participant_scope,omitempty"`
	Commitment       string `json:"commitment"`
}

// CredentialVerifiedPayload captures the payload for credential.verified events.
type CredentialVerifiedPayload struct {
	Level        int    `json:"level"`
	Participant  string `json:"participant"`
	CurrentLevel int    `json:"current_level"`
}
