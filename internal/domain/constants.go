package domain

const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

const (
	RequestStatusOpen      = "OPEN"
	RequestStatusClaimed   = "CLAIMED"
	RequestStatusCompleted = "COMPLETED"
	RequestStatusCancelled = "CANCELLED"
)

const (
	RequestKindRide  = "ride"
	RequestKindFavor = "favor"
)

const (
	VoteUp   = 1
	VoteDown = -1
)
