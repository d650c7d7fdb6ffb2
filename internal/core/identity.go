package core

// Identity is the signed-in user an operation runs on behalf of. It is
// established at sign-in and travels with every call that needs it.
type Identity struct {
	UserID string
	Email  string
	// AccessToken authorizes calls against the hosted store; local stores
	// leave it empty.
	AccessToken string
}

// IsZero reports whether no user is signed in.
func (id Identity) IsZero() bool {
	return id.UserID == ""
}
