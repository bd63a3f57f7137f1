// Package kube provides a Kubernetes Secret implementation of iface.Store.
// The Secret is typically mounted with envFrom so the restarted pod picks up
// the new value.
package kube

import (
	"context"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/hixichen/client-secret-rotator/pkg/constants"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

const component = "envstore.kube"

// Ensure Store implements iface.Store interface.
var _ iface.Store = (*Store)(nil)

// Store keeps environment values in the data of a Kubernetes Secret.
type Store struct {
	client    kubernetes.Interface
	namespace string
	name      string
	logger    *slog.Logger
}

// New creates a new Secret-backed Store.
func New(client kubernetes.Interface, namespace, name string, logger *slog.Logger) *Store {
	if namespace == "" {
		namespace = constants.DefaultKubernetesNamespace
	}
	return &Store{
		client:    client,
		namespace: namespace,
		name:      name,
		logger:    logger,
	}
}

// Load returns the Secret data. A missing Secret is an empty environment.
func (s *Store) Load(ctx context.Context) (map[string]string, error) {
	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			s.logger.Debug("Secret not found, returning empty environment", "name", s.name)
			return map[string]string{}, nil
		}
		return nil, rerrors.NewPersistenceError(component, "failed to get Secret", err)
	}

	env := make(map[string]string, len(secret.Data)+len(secret.StringData))
	for k, v := range secret.Data {
		env[k] = string(v)
	}
	for k, v := range secret.StringData {
		env[k] = v
	}

	s.logger.Debug("Loaded environment from Secret",
		"name", s.name,
		"key_count", len(env),
		"resourceVersion", secret.ResourceVersion,
	)
	return env, nil
}

// Set writes key into the Secret, creating it when absent. Updates carry the
// resourceVersion that was read, so a concurrent writer causes a conflict
// instead of a lost update.
func (s *Store) Set(ctx context.Context, key, value string) error {
	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return s.createSecret(ctx, key, value)
		}
		return rerrors.NewPersistenceError(component, "failed to get Secret", err)
	}
	return s.updateSecret(ctx, secret, key, value)
}

// createSecret creates a new Secret holding key.
func (s *Store) createSecret(ctx context.Context, key, value string) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.name,
			Namespace: s.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":      constants.AppName,
				"app.kubernetes.io/component": "client-secret",
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			key: []byte(value),
		},
	}

	if _, err := s.client.CoreV1().Secrets(s.namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		return rerrors.NewPersistenceError(component, "failed to create Secret", err)
	}

	s.logger.Info("Created Secret", "name", s.name, "key", key)
	return nil
}

// updateSecret updates key in an existing Secret.
func (s *Store) updateSecret(ctx context.Context, secret *corev1.Secret, key, value string) error {
	if secret.Data == nil {
		secret.Data = make(map[string][]byte)
	}
	secret.Data[key] = []byte(value)
	delete(secret.StringData, key)

	if _, err := s.client.CoreV1().Secrets(s.namespace).Update(ctx, secret, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			return rerrors.NewPersistenceError(component, "Secret was modified concurrently", err)
		}
		return rerrors.NewPersistenceError(component, "failed to update Secret", err)
	}

	s.logger.Info("Updated Secret", "name", s.name, "key", key)
	return nil
}

// HealthCheck verifies the Secret can be read.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("kubernetes store health check failed: %w", err)
	}
	return nil
}

// Type returns the store type.
func (s *Store) Type() iface.StoreType {
	return iface.StoreTypeKubernetes
}
