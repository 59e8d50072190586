// Package config holds the runtime configuration of the Gobang Online server.
//
// Every field is exposed as a command-line flag and as a GOBANG_* environment
// variable (see Flags). The server loads a .env file first, so variables set
// there behave like exported ones; flags win over both.
//
// Settings:
//   - host, port, static-dir: HTTP listener and page directory
//   - directory: user directory backend (memory, file, redis) with its
//     directory-path or redis-* settings
//   - seed-users: users created in the memory directory at startup
//   - login-claim-ttl: how long a login reserves an identity
//   - allowed-origins: websocket origin allow-list
//   - log-level, log-format, debug: logging
//   - ngrok, ngrok-auth, ngrok-domain: optional public tunnel
//
// Usage:
//
//	cfg := config.Default()
//	cmd := &cli.Command{
//		Name:  "gobang-online",
//		Flags: config.Flags(cfg),
//		Action: func(ctx context.Context, cmd *cli.Command) error {
//			if err := cfg.Validate(); err != nil {
//				return err
//			}
//			logger := cfg.NewLogger(os.Stderr)
//			...
//		},
//	}
package config
