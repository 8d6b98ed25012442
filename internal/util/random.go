// Package util provides utility functions for the AtendeBot application.
package util

import (
	"math/rand"
)

// PickRandom returns a uniformly random element of options, or the empty
// string when options is empty. Uses math/rand; reply selection has no
// cryptographic requirements.
func PickRandom(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.Intn(len(options))]
}
