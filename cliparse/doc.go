// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Environment variables are read first (github.com/caarlos0/env), then CLI
flags override them. main loads a .env file, if present, before calling
ParseFlags.

# Environment Variables and Flags

	PORT                  -p            Server port (default: 3318)
	DATABASE_URL          -d            Database URL (required)
	DATABASE_TYPE         -t            sqlite or postgres (default: sqlite)
	ADMIN_KEY_SALT        -admin-salt   Secret for admin key HMAC (required)
	VOTER_SALT            -voter-salt   Secret for voter fingerprints (required)
	REDIS_URL             -redis        Enables shared rate limiting
	RATE_LIMIT_PER_MINUTE               Token refill rate (default: 60)
	RATE_LIMIT_BURST                    Bucket size (default: 20)
	SWEEP_SCHEDULE        -sweep        Cron spec for the sweeper (default: @every 30s)
	SWEEP_WORKERS                       Sweeper pool size (default: 4)

# Validation

ParseFlags returns an error if required values are missing or a numeric
setting is not positive.
*/
package cliparse
