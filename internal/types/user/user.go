package user

import (
	"encoding/json"
	"strings"
)

// Guest is the public profile shown on a venue guest list.
type Guest struct {
	UserID   string `db:"clerk_id"  json:"user_id"`
	Username string `db:"username"  json:"username"`
	ImageURL string `db:"image_url" json:"image_url,omitempty"`
}

// Profile is the row kept in sync with the identity provider.
type Profile struct {
	ClerkID  string `db:"clerk_id"  json:"clerk_id"`
	Username string `db:"username"  json:"username"`
	ImageURL string `db:"image_url" json:"image_url"`
}

// ClerkWebhookEvent is the envelope of every Clerk webhook delivery.
type ClerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type ClerkUserData struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ImageURL        string `json:"image_url"`
	ProfileImageURL string `json:"profile_image_url"`
	Deleted         bool   `json:"deleted"`
}

// Profile maps the Clerk payload onto the stored profile, falling back to
// the full name and the legacy image field when the primary ones are empty.
func (d ClerkUserData) Profile() Profile {
	username := d.Username
	if username == "" {
		username = strings.TrimSpace(d.FirstName + " " + d.LastName)
	}
	imageURL := d.ImageURL
	if imageURL == "" {
		imageURL = d.ProfileImageURL
	}
	return Profile{ClerkID: d.ID, Username: username, ImageURL: imageURL}
}
