package models

import "time"

type PublicUser struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Username  string    `json:"username,omitempty"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// DriverSummary is the slice of the owning driver exposed on listings.
type DriverSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
