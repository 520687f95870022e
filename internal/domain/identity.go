package domain

// Identity is the caller's identity, passed explicitly into the lifecycle
// controller at construction. Nothing in the call packages reads identity
// from ambient state.
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatar_ref,omitempty"`
}
