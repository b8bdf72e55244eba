package authz

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UserID string
	Name   string
	Level  int
}

// Is reports whether the actor is the user with the given id.
func (a Actor) Is(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}
