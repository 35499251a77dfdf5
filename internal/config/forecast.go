package config

import "time"

// ForecastConfig defines settings for the forecast engine and its cache.
// Backend selects where computed forecasts are cached: "memory" keeps them
// in-process, "redis" shares them between instances (falling back to
// memory when Redis is unreachable).
type ForecastConfig struct {
	CacheBackend string
	CacheTTL     time.Duration
	CachePrefix  string
	HistoryDays  int
	PatternDays  int
	ModelOrder   int
	ModelPath    string // JSON file of fitted models; empty disables persistence
	Jitter       bool
	RefitCron    string // cron spec for refit + flush; empty disables the job
	WarmHours    int    // horizon precomputed after each refit; 0 disables warming
}

// LoadForecastConfig reads the FORECAST_* variables.
func LoadForecastConfig() ForecastConfig {
	c := ForecastConfig{
		CacheBackend: envStr("FORECAST_CACHE_BACKEND", "memory"),
		CacheTTL:     envDur("FORECAST_CACHE_TTL", time.Hour),
		CachePrefix:  envStr("FORECAST_CACHE_PREFIX", "forecast"),
		HistoryDays:  envInt("FORECAST_HISTORY_DAYS", 30),
		PatternDays:  envInt("FORECAST_PATTERN_DAYS", 60),
		ModelOrder:   envInt("FORECAST_MODEL_ORDER", 2),
		ModelPath:    envStr("FORECAST_MODEL_PATH", "data/forecast_models.json"),
		Jitter:       envBool("FORECAST_JITTER", false),
		RefitCron:    envStr("FORECAST_REFIT_CRON", "@hourly"),
		WarmHours:    envInt("FORECAST_WARM_HOURS", 12),
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.ModelOrder < 1 || c.ModelOrder > 3 {
		c.ModelOrder = 2
	}
	if c.WarmHours > 24 {
		c.WarmHours = 24
	}
	return c
}
