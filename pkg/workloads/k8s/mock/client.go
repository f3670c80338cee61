package mock

import (
	"context"
	"errors"
	"io"

	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
)

// get mocked k8s.Cluster
//
// # returns
//
//   - k8s.Cluster : using *MockClient as base client
//   - *MockClient : mock object.
//     you can fake k8s behaviours or spy its usage.
func NewCluster() (k8s.Cluster, *MockClient) {
	client := NewMockClient()
	return k8s.AttachCluster(client), client
}

type MockClient struct {
	Impl struct {
		CreateConfigMap func(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
		GetConfigMap    func(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error)
		UpdateConfigMap func(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
		DeleteConfigMap func(ctx context.Context, namespace string, name string) error

		GetJob    func(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
		CreateJob func(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
		DeleteJob func(ctx context.Context, namespace string, name string) error

		FindPods func(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubecore.Pod, error)

		Log func(ctx context.Context, namespace string, pod string, container string) (io.ReadCloser, error)
	}
	Called struct {
		CreateConfigMap uint64
		GetConfigMap    uint64
		UpdateConfigMap uint64
		DeleteConfigMap uint64

		GetJob    uint64
		CreateJob uint64
		DeleteJob uint64

		FindPods uint64

		Log uint64
	}
}

// MockClient implements k8s.K8sClient
var _ k8s.K8sClient = &MockClient{}

var ErrNotImplemented = errors.New("[MOCK] not implemented")

func (m *MockClient) CreateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	m.Called.CreateConfigMap += 1
	if m.Impl.CreateConfigMap == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.CreateConfigMap(ctx, namespace, cm)
}

func (m *MockClient) GetConfigMap(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error) {
	m.Called.GetConfigMap += 1
	if m.Impl.GetConfigMap == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.GetConfigMap(ctx, namespace, name)
}

func (m *MockClient) UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	m.Called.UpdateConfigMap += 1
	if m.Impl.UpdateConfigMap == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.UpdateConfigMap(ctx, namespace, cm)
}

func (m *MockClient) DeleteConfigMap(ctx context.Context, namespace string, name string) error {
	m.Called.DeleteConfigMap += 1
	if m.Impl.DeleteConfigMap == nil {
		return ErrNotImplemented
	}
	return m.Impl.DeleteConfigMap(ctx, namespace, name)
}

func (m *MockClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	m.Called.GetJob += 1
	if m.Impl.GetJob == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.GetJob(ctx, namespace, name)
}

func (m *MockClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	m.Called.CreateJob += 1
	if m.Impl.CreateJob == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.CreateJob(ctx, namespace, job)
}

func (m *MockClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	m.Called.DeleteJob += 1
	if m.Impl.DeleteJob == nil {
		return ErrNotImplemented
	}
	return m.Impl.DeleteJob(ctx, namespace, name)
}

func (m *MockClient) FindPods(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubecore.Pod, error) {
	m.Called.FindPods += 1
	if m.Impl.FindPods == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.FindPods(ctx, namespace, ls)
}

func (m *MockClient) Log(ctx context.Context, namespace string, pod string, container string) (io.ReadCloser, error) {
	m.Called.Log += 1
	if m.Impl.Log == nil {
		return nil, ErrNotImplemented
	}
	return m.Impl.Log(ctx, namespace, pod, container)
}

func NewMockClient() *MockClient {
	return &MockClient{}
}
