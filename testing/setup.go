// Package testing prepares the process environment for package tests.
// Test files import it for its side effect:
//
//	import _ "github.com/dyetrack/dyetrack/testing"
package testing

import "os"

// defaults point outbound integrations at a closed port so that a test which
// forgets to stub one fails fast instead of reaching a real service.
var defaults = map[string]string{
	"GOTENBERG_URL": "http://127.0.0.1:0",
	"API_BASE_URL":  "http://127.0.0.1:0",
}

func init() {
	_ = os.Setenv("DYETRACK_TEST_MODE", "1")
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
