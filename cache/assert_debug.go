//go:build policycache_debug

package cache

import "fmt"

const debug = true

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("cache: invariant violated: "+format, args...))
	}
}
