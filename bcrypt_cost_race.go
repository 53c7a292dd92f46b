//go:build race

package accounts

import "golang.org/x/crypto/bcrypt"

func init() {
	// Race-enabled builds hash at the library default cost so test
	// suites can run with strict timeouts.
	DefaultBcryptCost = bcrypt.DefaultCost
}
