// twobot - OneBot v11 bot engine
// License: MIT
//
// Copyright (c) 2026 twobot contributors

package config

// DefaultConfig returns the default configuration: a gateway on the local
// machine with its HTTP API on 5700 and dialing us back on 9444.
func DefaultConfig() *Config {
	return &Config{
		Host:        "127.0.0.1",
		APIPort:     5700,
		WSHost:      "0.0.0.0",
		WSPort:      9444,
		WSPath:      "/",
		Workers:     16,
		HTTPTimeout: 10,
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			Burst:             5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
