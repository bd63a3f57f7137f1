// Package constants provides shared constants for the application.
package constants

const (
	// AppName is the name used for logs, metrics and labels.
	AppName = "client-secret-rotator"

	// HookName is the component name of the rotation hook.
	HookName = "apple-secret-rotator"

	// DefaultConfigPath is where the daemon looks for its YAML config.
	DefaultConfigPath = "/etc/client-secret-rotator/config.yaml"

	// DefaultSecretKey is the environment key the minted client secret is stored under.
	DefaultSecretKey = "AUTH_APPLE_CLIENT_SECRET"

	// DefaultDailyAt is the local time of day of the scheduled check.
	DefaultDailyAt = "03:00"

	// DefaultKubernetesNamespace is the namespace for the Secret-backed store.
	DefaultKubernetesNamespace = "default"

	// DefaultLockKey is the redis key used for the distributed rotation lock.
	DefaultLockKey = "client-secret-rotator:lock"

	// ComponentNameRotation is the component name of the rotation manager.
	ComponentNameRotation = "rotation"

	// ComponentNameScheduler is the component name of the scheduler.
	ComponentNameScheduler = "scheduler"

	// ComponentNameStore is the component name of the environment store.
	ComponentNameStore = "envstore"
)

// Environment variable names read by the config loader.
const (
	EnvTeamID          = "AUTH_APPLE_HOOK_APPLE_TEAM_ID"
	EnvClientID        = "AUTH_APPLE_CLIENT_ID"
	EnvKeyID           = "AUTH_APPLE_HOOK_APPLE_KEY_ID"
	EnvPrivateKey      = "AUTH_APPLE_HOOK_APPLE_PRIVATE_KEY"
	EnvPrivateKeyFile  = "AUTH_APPLE_HOOK_APPLE_PRIVATE_KEY_FILE"
	EnvLifetimeSeconds = "AUTH_APPLE_HOOK_APPLE_LIFETIME_SECONDS"
	EnvHostEnvFilePath = "HOST_ENV_FILE_PATH"
)
