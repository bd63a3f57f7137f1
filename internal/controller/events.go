package controller

import (
	"context"
	"log/slog"
	"os"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"

	"github.com/hixichen/client-secret-rotator/pkg/constants"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
	"github.com/hixichen/client-secret-rotator/pkg/notify"
)

const (
	// EventReasonSecretRotated is the event reason for a persisted rotation.
	EventReasonSecretRotated = "ClientSecretRotated"
)

// PodEventNotifier records rotation events on the rotator's own pod. The
// pod is found through POD_NAME and POD_NAMESPACE set via the Downward API;
// outside a pod it does nothing.
type PodEventNotifier struct {
	client    kubernetes.Interface
	recorder  record.EventRecorder
	podName   string
	namespace string
	logger    *slog.Logger
}

// Ensure PodEventNotifier implements notify.Notifier interface.
var _ notify.Notifier = (*PodEventNotifier)(nil)

// NewPodEventNotifier creates a notifier that broadcasts through the API
// server. The returned stop function shuts the broadcaster down.
func NewPodEventNotifier(client kubernetes.Interface, logger *slog.Logger) (*PodEventNotifier, func()) {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: client.CoreV1().Events("")})
	recorder := broadcaster.NewRecorder(scheme.Scheme, corev1.EventSource{Component: constants.AppName})

	n := NewPodEventNotifierWithRecorder(client, recorder, os.Getenv("POD_NAME"), os.Getenv("POD_NAMESPACE"), logger)
	return n, broadcaster.Shutdown
}

// NewPodEventNotifierWithRecorder creates a notifier with an explicit
// recorder and pod (for testing).
func NewPodEventNotifierWithRecorder(client kubernetes.Interface, recorder record.EventRecorder, podName, namespace string, logger *slog.Logger) *PodEventNotifier {
	if namespace == "" {
		namespace = constants.DefaultKubernetesNamespace
	}
	return &PodEventNotifier{
		client:    client,
		recorder:  recorder,
		podName:   podName,
		namespace: namespace,
		logger:    logger,
	}
}

// Notify records a Normal event on the pod.
func (n *PodEventNotifier) Notify(ctx context.Context, event notify.Event) error {
	pod, err := n.getPod(ctx)
	if err != nil {
		return err
	}
	if pod == nil {
		n.logger.Debug("Cannot emit Kubernetes event, POD_NAME is not set")
		return nil
	}

	n.recorder.Eventf(pod, corev1.EventTypeNormal, EventReasonSecretRotated,
		"Apple client secret for %s rotated (%s), expires %s",
		event.ClientID, event.Reason, event.ExpiresAt.Format(time.RFC3339))
	return nil
}

// getPod retrieves the rotator pod, or nil when not running in one.
func (n *PodEventNotifier) getPod(ctx context.Context) (*corev1.Pod, error) {
	if n.podName == "" {
		return nil, nil
	}
	pod, err := n.client.CoreV1().Pods(n.namespace).Get(ctx, n.podName, metav1.GetOptions{})
	if err != nil {
		return nil, rerrors.NewNotificationError("controller.events", "failed to get rotator pod", err)
	}
	return pod, nil
}
