package utils

import "github.com/google/uuid"

// GenID returns a random identifier for peers and requests.
func GenID() string {
	return uuid.NewString()
}
