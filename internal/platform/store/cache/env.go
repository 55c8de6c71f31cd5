package cache

import "bazaar/internal/platform/config"

// ConfigFromEnv reads CACHE_* from c
func ConfigFromEnv(c config.Conf) Config {
	c = c.Prefix("CACHE_")
	return Config{
		Enabled:   c.MayBool("ENABLED", true),
		Backend:   Backend(c.MayEnum("BACKEND", string(BackendRedis), string(BackendRedis), string(BackendMemory))),
		URL:       c.MayString("URL", ""),
		Host:      c.MayString("HOST", "localhost"),
		Port:      c.MayInt("PORT", 6379),
		Password:  c.MayString("PASSWORD", ""),
		DB:        c.MayInt("DB", 0),
		TLS:       c.MayBool("TLS", false),
		Codec:     c.MayEnum("CODEC", "json", "json", "msgpack"),
		ScanCount: c.MayInt64("SCAN_COUNT", DefaultScanCount),
		MemoryMB:  c.MayInt("MEMORY_MB", DefaultMemoryMB),
	}
}
