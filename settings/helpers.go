package settings

import (
	"strings"
	"time"

	"github.com/ordishs/gocore"
)

// cfg is the narrow slice of gocore.Config's API the settings loader
// needs. Accepting it as an interface (rather than calling the
// teacher's gocore.Config() package-level singleton directly) avoids
// the global-state the design notes warn against, while keeping the
// exact getter shapes gocore provides.
type cfg interface {
	Get(key string, defaultValue ...string) (string, bool)
	GetInt(key string, defaultValue ...int) (int, bool)
	GetBool(key string, defaultValue ...bool) bool
	GetMulti(key string, sep string, defaultValue ...[]string) ([]string, bool)
}

var _ cfg = (*gocore.Configuration)(nil)

func getString(c cfg, key, defaultValue string) string {
	value, found := c.Get(key)
	if !found {
		return defaultValue
	}

	return value
}

func getMultiString(c cfg, key, defaultValue string) []string {
	value, _ := c.GetMulti(key, defaultValue)
	return value
}

func getInt(c cfg, key string, defaultValue int) int {
	value, found := c.GetInt(key)
	if !found {
		return defaultValue
	}

	return value
}

func getBool(c cfg, key string, defaultValue bool) bool {
	return c.GetBool(key, defaultValue)
}

func getMillis(c cfg, key string, defaultMillis int) time.Duration {
	return time.Duration(getInt(c, key, defaultMillis)) * time.Millisecond
}

func getSeconds(c cfg, key string, defaultSeconds int) time.Duration {
	return time.Duration(getInt(c, key, defaultSeconds)) * time.Second
}
