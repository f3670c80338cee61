package bridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/bridgepipeline/pkg/bridge"
	wl "github.com/opst/bridgepipeline/pkg/workloads"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	k8smock "github.com/opst/bridgepipeline/pkg/workloads/k8s/mock"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func fakeCluster(objects ...runtime.Object) (k8s.Cluster, *fake.Clientset) {
	clientset := fake.NewSimpleClientset(objects...)
	return k8s.AttachCluster(k8s.WrapK8sClient(clientset)), clientset
}

func fullDescriptor() bridge.JobDescriptor {
	return bridge.JobDescriptor{
		JobName:             "job1",
		Namespace:           "ns1",
		ResourceURL:         "https://hpc.example.com",
		ResourceSecret:      "cred1",
		Script:              "run.sh",
		ScriptLocation:      "s3",
		ScriptMetadata:      "bucket:run.sh",
		ScriptExtraLocation: "inline",
		AdditionalData:      "extra.tar",
		JobProperties:       `{"NodeNumber": "1"}`,
		JobParameters:       `{"param": "1"}`,
		UpdateInterval:      "20",
	}
}

func TestConfigMapName(t *testing.T) {
	for _, testcase := range []struct{ when, then string }{
		{when: "job1", then: "job1-bridge-cm"},
		{when: "", then: "-bridge-cm"},
		{when: "a-b.c", then: "a-b.c-bridge-cm"},
	} {
		if actual := bridge.ConfigMapName(testcase.when); actual != testcase.then {
			t.Errorf("ConfigMapName(%q) = %q, want %q", testcase.when, actual, testcase.then)
		}
	}
}

func TestJobDescriptor_ConfigMap(t *testing.T) {
	t.Run("it maps all fields to keys", func(t *testing.T) {
		cm := fullDescriptor().ConfigMap()

		if cm.Name != "job1-bridge-cm" || cm.Namespace != "ns1" {
			t.Errorf("unexpected meta: %s/%s", cm.Namespace, cm.Name)
		}
		expected := map[string]string{
			"updateInterval":              "20",
			"resourceURL":                 "https://hpc.example.com",
			"resourcesecret":              "cred1",
			"jobproperties":               `{"NodeNumber": "1"}`,
			"jobdata.additionalData":      "extra.tar",
			"jobdata.scriptMetadata":      "bucket:run.sh",
			"jobdata.jobParameters":       `{"param": "1"}`,
			"jobdata.scriptExtraLocation": "inline",
			"jobdata.jobScript":           "run.sh",
			"jobdata.scriptLocation":      "s3",
		}
		if diff := cmp.Diff(expected, cm.Data); diff != "" {
			t.Errorf("data (-want +got):\n%s", diff)
		}
	})

	t.Run("it has all keys even if fields are empty", func(t *testing.T) {
		cm := bridge.JobDescriptor{JobName: "job1", Namespace: "ns1"}.ConfigMap()

		if len(cm.Data) != len(bridge.DescriptorKeys) {
			t.Errorf("len(data) = %d, want %d", len(cm.Data), len(bridge.DescriptorKeys))
		}
		for _, k := range bridge.DescriptorKeys {
			v, ok := cm.Data[k]
			if !ok {
				t.Errorf("key %s is missing", k)
			} else if v != "" {
				t.Errorf("key %s = %q, want empty", k, v)
			}
		}
	})
}

func TestWriterAndDeleter(t *testing.T) {
	ctx := context.Background()

	t.Run("create then delete leaves nothing", func(t *testing.T) {
		cluster, clientset := fakeCluster()
		desc := fullDescriptor()

		created, err := bridge.NewWriter(cluster).Create(ctx, desc)
		if err != nil {
			t.Fatal(err)
		}
		if created.Name() != "job1-bridge-cm" || created.Namespace() != "ns1" {
			t.Errorf("created: %s/%s", created.Namespace(), created.Name())
		}

		stored, err := clientset.CoreV1().ConfigMaps("ns1").Get(ctx, "job1-bridge-cm", kubeapimeta.GetOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(desc.ConfigMapData(), stored.Data); diff != "" {
			t.Errorf("stored data (-want +got):\n%s", diff)
		}

		if err := bridge.NewDeleter(cluster).Delete(ctx, desc.JobName, desc.Namespace); err != nil {
			t.Fatal(err)
		}

		list, err := clientset.CoreV1().ConfigMaps("ns1").List(ctx, kubeapimeta.ListOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if len(list.Items) != 0 {
			t.Errorf("residual configmaps: %+v", list.Items)
		}
	})

	t.Run("create does not overwrite the existing one", func(t *testing.T) {
		existing := &kubecore.ConfigMap{
			ObjectMeta: kubeapimeta.ObjectMeta{Name: "job1-bridge-cm", Namespace: "ns1"},
			Data:       map[string]string{"jobStatus": "RUNNING"},
		}
		cluster, clientset := fakeCluster(existing)

		_, err := bridge.NewWriter(cluster).Create(ctx, fullDescriptor())
		if !wl.AsConflict(err) {
			t.Errorf("err = %v, want ErrConflict", err)
		}
		if !kubeerr.IsAlreadyExists(err) {
			t.Errorf("cause is lost: %v", err)
		}

		stored, err := clientset.CoreV1().ConfigMaps("ns1").Get(ctx, "job1-bridge-cm", kubeapimeta.GetOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(existing.Data, stored.Data); diff != "" {
			t.Errorf("configmap is overwritten (-want +got):\n%s", diff)
		}
	})

	t.Run("the same job name can be used in another namespace", func(t *testing.T) {
		cluster, _ := fakeCluster(&kubecore.ConfigMap{
			ObjectMeta: kubeapimeta.ObjectMeta{Name: "job1-bridge-cm", Namespace: "ns0"},
		})
		if _, err := bridge.NewWriter(cluster).Create(ctx, fullDescriptor()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("delete of missing configmap fails", func(t *testing.T) {
		cluster, _ := fakeCluster()

		err := bridge.NewDeleter(cluster).Delete(ctx, "job1", "ns1")
		if !wl.AsMissing(err) {
			t.Errorf("err = %v, want ErrMissing", err)
		}
	})

	t.Run("delete looks up the name Writer uses", func(t *testing.T) {
		cluster, client := k8smock.NewCluster()
		client.Impl.DeleteConfigMap = func(ctx context.Context, namespace, name string) error {
			if namespace != "ns1" || name != bridge.ConfigMapName("job1") {
				t.Errorf("deleting %s/%s", namespace, name)
			}
			return nil
		}
		if err := bridge.NewDeleter(cluster).Delete(ctx, "job1", "ns1"); err != nil {
			t.Fatal(err)
		}
		if client.Called.DeleteConfigMap != 1 {
			t.Errorf("DeleteConfigMap is called %d times", client.Called.DeleteConfigMap)
		}
	})

	t.Run("authorization failure is passed through", func(t *testing.T) {
		cluster, clientset := fakeCluster()
		forbidden := kubeerr.NewForbidden(
			schema.GroupResource{Resource: "configmaps"}, "job1-bridge-cm", errors.New("rbac"),
		)
		clientset.PrependReactor("create", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
			return true, nil, forbidden
		})

		_, err := bridge.NewWriter(cluster).Create(ctx, fullDescriptor())
		if !kubeerr.IsForbidden(err) {
			t.Errorf("err = %v, want Forbidden", err)
		}
		if wl.AsConflict(err) {
			t.Errorf("err is conflict: %v", err)
		}
	})
}

func TestReader(t *testing.T) {
	ctx := context.Background()

	reported := func() *kubecore.ConfigMap {
		data := fullDescriptor().ConfigMapData()
		data["id"] = "12345"
		data["jobStatus"] = "RUNNING"
		data["submitTime"] = "2024-01-01T00:00:00Z"
		data["startTime"] = "2024-01-01T00:00:10Z"
		return &kubecore.ConfigMap{
			ObjectMeta: kubeapimeta.ObjectMeta{Name: "job1-bridge-cm", Namespace: "ns1"},
			Data:       data,
		}
	}

	t.Run("Status reads the view of the configmap", func(t *testing.T) {
		cluster, _ := fakeCluster(reported())

		actual, err := bridge.NewReader(cluster).Status(ctx, "job1", "ns1")
		if err != nil {
			t.Fatal(err)
		}
		expected := bridge.Status{
			ID:         "12345",
			State:      bridge.Running,
			SubmitTime: "2024-01-01T00:00:00Z",
			StartTime:  "2024-01-01T00:00:10Z",
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("status (-want +got):\n%s", diff)
		}
		if actual.Finished() {
			t.Error("RUNNING is finished")
		}
	})

	t.Run("Status of missing job is ErrMissing", func(t *testing.T) {
		cluster, _ := fakeCluster()
		if _, err := bridge.NewReader(cluster).Status(ctx, "job1", "ns1"); !wl.AsMissing(err) {
			t.Errorf("err = %v, want ErrMissing", err)
		}
	})

	t.Run("RequestKill sets kill flag, keeping others", func(t *testing.T) {
		cluster, clientset := fakeCluster(reported())

		if err := bridge.NewReader(cluster).RequestKill(ctx, "job1", "ns1"); err != nil {
			t.Fatal(err)
		}

		stored, err := clientset.CoreV1().ConfigMaps("ns1").Get(ctx, "job1-bridge-cm", kubeapimeta.GetOptions{})
		if err != nil {
			t.Fatal(err)
		}
		expected := reported().Data
		expected["kill"] = "true"
		if diff := cmp.Diff(expected, stored.Data); diff != "" {
			t.Errorf("data (-want +got):\n%s", diff)
		}

		status, err := bridge.NewReader(cluster).Status(ctx, "job1", "ns1")
		if err != nil {
			t.Fatal(err)
		}
		if !status.KillRequested {
			t.Error("kill is not requested")
		}
	})

	t.Run("RequestKill does not retry on conflict", func(t *testing.T) {
		cluster, clientset := fakeCluster(reported())
		updates := 0
		clientset.PrependReactor("update", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
			updates += 1
			return true, nil, kubeerr.NewConflict(
				schema.GroupResource{Resource: "configmaps"}, "job1-bridge-cm", errors.New("modified"),
			)
		})

		err := bridge.NewReader(cluster).RequestKill(ctx, "job1", "ns1")
		if !kubeerr.IsConflict(err) {
			t.Errorf("err = %v, want Conflict", err)
		}
		if updates != 1 {
			t.Errorf("update is tried %d times", updates)
		}
	})
}

func TestState_Finished(t *testing.T) {
	for state, finished := range map[bridge.State]bool{
		bridge.Submitted:  false,
		bridge.Pending:    false,
		bridge.Running:    false,
		bridge.Completing: false,
		bridge.Completed:  true,
		bridge.Cancelled:  true,
		bridge.Failed:     true,
		bridge.Unknown:    false,
		"":                false,
	} {
		if actual := state.Finished(); actual != finished {
			t.Errorf("%q.Finished() = %v, want %v", state, actual, finished)
		}
	}
}
