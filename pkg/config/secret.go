package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

// Env is a snapshot of environment variables.
type Env map[string]string

// Lookup returns the trimmed value of key.
func (e Env) Lookup(key string) string {
	return strings.TrimSpace(e[key])
}

// EnvFromOS snapshots the process environment.
func EnvFromOS() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// LoadEnv snapshots the process environment merged over envFile, if given.
// Process variables win over file entries. When the private key is not set
// inline but AUTH_APPLE_HOOK_APPLE_PRIVATE_KEY_FILE is, the key is read from
// that file.
func LoadEnv(envFile string) (Env, error) {
	env := make(Env)
	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for k, v := range EnvFromOS() {
		env[k] = v
	}

	if err := env.resolvePrivateKeyFile(); err != nil {
		return nil, err
	}
	return env, nil
}

func (e Env) resolvePrivateKeyFile() error {
	if e.Lookup(constants.EnvPrivateKey) != "" {
		return nil
	}
	path := e.Lookup(constants.EnvPrivateKeyFile)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read private key file %s: %w", path, err)
	}
	e[constants.EnvPrivateKey] = string(data)
	return nil
}

// Logical names of the required secret inputs, in reporting order.
const (
	FieldTeamID     = "teamId"
	FieldClientID   = "clientId"
	FieldKeyID      = "keyId"
	FieldPrivateKey = "privateKey"

	// FieldEnvFilePath is the write-back location of the file store.
	FieldEnvFilePath = "envFilePath"
)

var fieldEnv = map[string]string{
	FieldTeamID:      constants.EnvTeamID,
	FieldClientID:    constants.EnvClientID,
	FieldKeyID:       constants.EnvKeyID,
	FieldPrivateKey:  constants.EnvPrivateKey,
	FieldEnvFilePath: constants.EnvHostEnvFilePath,
}

var structFieldNames = map[string]string{
	"TeamID":        FieldTeamID,
	"ClientID":      FieldClientID,
	"KeyID":         FieldKeyID,
	"PrivateKeyPEM": FieldPrivateKey,
}

var validate = validator.New()

// SecretConfigResult is either an enabled configuration or the list of
// missing inputs that disabled it.
type SecretConfigResult struct {
	Config   *clientsecret.Config
	Missing  []string
	Warnings []string
}

// Enabled reports whether every required input was present.
func (r SecretConfigResult) Enabled() bool {
	return r.Config != nil
}

// MissingEnv returns the environment variable names behind Missing.
func (r SecretConfigResult) MissingEnv() []string {
	names := make([]string, 0, len(r.Missing))
	for _, field := range r.Missing {
		names = append(names, fieldEnv[field])
	}
	return names
}

// WithMissing returns r disabled, with fields appended to Missing.
func (r SecretConfigResult) WithMissing(fields ...string) SecretConfigResult {
	if len(fields) == 0 {
		return r
	}
	r.Config = nil
	r.Missing = append(append([]string(nil), r.Missing...), fields...)
	return r
}

// Err returns a ConfigIncomplete error naming the missing variables, or nil
// when enabled.
func (r SecretConfigResult) Err() error {
	if r.Enabled() {
		return nil
	}
	return rerrors.NewConfigIncompleteError("config",
		"missing configuration: "+strings.Join(r.MissingEnv(), ", "), nil)
}

// LoadSecretConfig builds the minting configuration from env. It never
// fails: incomplete input yields a disabled result naming what is missing.
func LoadSecretConfig(env Env) SecretConfigResult {
	cfg := clientsecret.Config{
		TeamID:        env.Lookup(constants.EnvTeamID),
		ClientID:      env.Lookup(constants.EnvClientID),
		KeyID:         env.Lookup(constants.EnvKeyID),
		PrivateKeyPEM: env.Lookup(constants.EnvPrivateKey),
	}

	var result SecretConfigResult

	if raw := env.Lookup(constants.EnvLifetimeSeconds); raw != "" {
		lifetime, err := strconv.ParseInt(raw, 10, 64)
		switch {
		case err != nil || lifetime <= 0:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s=%q is not a positive integer, using the maximum lifetime", constants.EnvLifetimeSeconds, raw))
		case lifetime > clientsecret.MaxLifetimeSeconds:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s=%d exceeds the maximum of %d seconds and will be capped", constants.EnvLifetimeSeconds, lifetime, clientsecret.MaxLifetimeSeconds))
			cfg.LifetimeSeconds = lifetime
		default:
			cfg.LifetimeSeconds = lifetime
		}
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			result.Missing = []string{FieldTeamID, FieldClientID, FieldKeyID, FieldPrivateKey}
			return result
		}
		for _, fe := range verrs {
			if name, ok := structFieldNames[fe.StructField()]; ok {
				result.Missing = append(result.Missing, name)
			}
		}
		return result
	}

	result.Config = &cfg
	return result
}
