// Package guard flips FERREEXPRESS_TEST_MODE on when imported, so binaries
// started from tests skip connecting to Postgres and Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FERREEXPRESS_TEST_MODE") == "" {
			_ = os.Setenv("FERREEXPRESS_TEST_MODE", "1")
		}
	})
}
