// Package guard flips the service into test mode when imported by a test
// binary, so mains and runtime helpers skip network side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SETTLEMENT_TEST_MODE") == "" {
			_ = os.Setenv("SETTLEMENT_TEST_MODE", "1")
		}
	})
}
