package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CREWHUB_TEST_MODE") == "" {
			_ = os.Setenv("CREWHUB_TEST_MODE", "1")
		}
	})
}
