package store

// UserPreference holds one user's scheduling preferences as a JSON
// document: working hours, focus blocks, priority rules, buffer minutes
// and auto-booking settings. The engine deserializes it into its typed
// preference snapshot per request.
type UserPreference struct {
	UserID      int32
	Preferences string
	CreatedTs   int64
	UpdatedTs   int64
}

// UpsertUserPreference specifies the data for upserting user preferences.
type UpsertUserPreference struct {
	UserID      int32
	Preferences string
}
