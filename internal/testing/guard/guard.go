// Package guard switches the process into test mode when imported, so that
// packages reading app.InTestMode skip network side effects.
package guard

import (
	"os"
	"sync"
)

// EnvVar is the switch read by the binaries.
const EnvVar = "APP_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvVar) == "" {
			_ = os.Setenv(EnvVar, "1")
		}
	})
}
