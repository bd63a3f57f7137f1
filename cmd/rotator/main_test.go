package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/lock"
	"github.com/hixichen/client-secret-rotator/pkg/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`rotation:
  restart: false
store:
  type: file
  file:
    path: %s
server:
  probeAddr: "127.0.0.1:0"
%s`, filepath.Join(dir, "app.env"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newOptions(configPath string) (options, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return options{configPath: configPath, registerer: reg, gatherer: reg}, reg
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestRun_DisabledWithoutCredentials(t *testing.T) {
	t.Setenv("POD_NAME", "")
	dir := t.TempDir()
	opts, reg := newOptions(writeConfig(t, dir, ""))

	require.NoError(t, run(cancelledContext(), opts, testLogger()))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "client_secret_rotator_last_rotation_timestamp_seconds")
}

func TestRun_EnabledFromEnvFile(t *testing.T) {
	t.Setenv("POD_NAME", "")
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "AuthKey.p8")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

	envFile := filepath.Join(dir, "credentials.env")
	require.NoError(t, os.WriteFile(envFile, []byte(strings.Join([]string{
		"AUTH_APPLE_HOOK_APPLE_TEAM_ID=TEAM123456",
		"AUTH_APPLE_CLIENT_ID=com.example.web",
		"AUTH_APPLE_HOOK_APPLE_KEY_ID=KEY1234567",
		"AUTH_APPLE_HOOK_APPLE_PRIVATE_KEY_FILE=" + keyPath,
	}, "\n")), 0o600))

	opts, _ := newOptions(writeConfig(t, dir, "envFile: "+envFile+"\n"))
	require.NoError(t, run(cancelledContext(), opts, testLogger()))
}

func TestRun_DisabledWithoutEnvFilePath(t *testing.T) {
	t.Setenv("POD_NAME", "")
	t.Setenv("HOST_ENV_FILE_PATH", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: file\nserver:\n  probeAddr: \"127.0.0.1:0\"\n"), 0o600))
	opts, _ := newOptions(path)

	require.NoError(t, run(cancelledContext(), opts, testLogger()))
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: ftp\n"), 0o600))
	opts, _ := newOptions(path)

	err := run(context.Background(), opts, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeLocker_LocalByDefault(t *testing.T) {
	locker, closeFn, err := initializeLocker(context.Background(), config.LockConfig{}, testLogger())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &lock.Local{}, locker)
}

func TestInitializeNotifier(t *testing.T) {
	t.Setenv("POD_NAME", "")

	t.Run("log only", func(t *testing.T) {
		n, closeFn, err := initializeNotifier(config.NotifyConfig{}, testLogger())
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, notify.Multi{}, n)
		assert.Len(t, n.(notify.Multi), 1)
	})

	t.Run("with kafka", func(t *testing.T) {
		n, closeFn, err := initializeNotifier(config.NotifyConfig{Kafka: config.KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
			Topic:   "client-secret-rotations",
		}}, testLogger())
		require.NoError(t, err)
		defer closeFn()
		assert.Len(t, n.(notify.Multi), 2)
	})

	t.Run("kafka without topic", func(t *testing.T) {
		_, _, err := initializeNotifier(config.NotifyConfig{Kafka: config.KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
		}}, testLogger())
		require.Error(t, err)
	})
}
