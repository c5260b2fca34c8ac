package domain

// User is the subset of the backend's user profile the marker engine needs.
type User struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}
