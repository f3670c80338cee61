package configmap_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/configmap"
	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/internal/commandline"
	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/logger"
	"github.com/opst/bridgepipeline/pkg/bridge"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	"github.com/opst/bridgepipeline/pkg/pipeline"
	wl "github.com/opst/bridgepipeline/pkg/workloads"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"github.com/youta-t/flarc"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	cluster := k8s.AttachCluster(k8s.WrapK8sClient(clientset))

	create := func(flags configmap.CreateFlag) error {
		return configmap.CreateTask()(
			ctx, logger.Null(), bconf.Default(), cluster,
			commandline.MockCommandline[configmap.CreateFlag]{
				Fullname_: "bridge configmap create",
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_:    flags,
				Args_:     map[string][]string{},
			},
			[]any{},
		)
	}
	del := func(flags configmap.DeleteFlag) error {
		return configmap.DeleteTask()(
			ctx, logger.Null(), bconf.Default(), cluster,
			commandline.MockCommandline[configmap.DeleteFlag]{
				Fullname_: "bridge configmap delete",
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_:    flags,
				Args_:     map[string][]string{},
			},
			[]any{},
		)
	}

	flags := configmap.CreateFlag{
		JobName:        "job1",
		Namespace:      "ns1",
		ResourceURL:    "https://hpc.example.com",
		ResourceSecret: "cred1",
		Script:         "run.sh",
		ScriptLocation: "s3",
		UpdateInterval: "20",
	}

	if err := create(flags); err != nil {
		t.Fatal(err)
	}
	cm, err := clientset.CoreV1().ConfigMaps("ns1").Get(ctx, "job1-bridge-cm", kubeapimeta.GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(flags.Descriptor().ConfigMapData(), cm.Data); diff != "" {
		t.Errorf("data (-want +got):\n%s", diff)
	}

	if err := create(flags); !wl.AsConflict(err) {
		t.Errorf("second create: err = %v, want ErrConflict", err)
	}

	if err := del(configmap.DeleteFlag{JobName: "job1", Namespace: "ns1"}); err != nil {
		t.Fatal(err)
	}
	list, err := clientset.CoreV1().ConfigMaps("ns1").List(ctx, kubeapimeta.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 0 {
		t.Errorf("residual: %v", list.Items)
	}

	if err := del(configmap.DeleteFlag{JobName: "job1", Namespace: "ns1"}); !wl.AsMissing(err) {
		t.Errorf("second delete: err = %v, want ErrMissing", err)
	}
}

func TestUsage(t *testing.T) {
	for name, flags := range map[string]configmap.DeleteFlag{
		"no job name":  {Namespace: "ns1"},
		"no namespace": {JobName: "job1"},
	} {
		t.Run("delete: "+name, func(t *testing.T) {
			clientset := fake.NewSimpleClientset(&kubecore.ConfigMap{
				ObjectMeta: kubeapimeta.ObjectMeta{Name: "job1-bridge-cm", Namespace: "ns1"},
			})
			err := configmap.DeleteTask()(
				context.Background(), logger.Null(), bconf.Default(),
				k8s.AttachCluster(k8s.WrapK8sClient(clientset)),
				commandline.MockCommandline[configmap.DeleteFlag]{Flags_: flags},
				[]any{},
			)
			if !errors.Is(err, flarc.ErrUsage) {
				t.Errorf("err = %v, want ErrUsage", err)
			}
			if len(clientset.Actions()) != 0 {
				t.Errorf("cluster is touched")
			}
		})
	}

	t.Run("create: no namespace", func(t *testing.T) {
		clientset := fake.NewSimpleClientset()
		err := configmap.CreateTask()(
			context.Background(), logger.Null(), bconf.Default(),
			k8s.AttachCluster(k8s.WrapK8sClient(clientset)),
			commandline.MockCommandline[configmap.CreateFlag]{
				Flags_: configmap.CreateFlag{JobName: "job1"},
			},
			[]any{},
		)
		if !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("err = %v, want ErrUsage", err)
		}
		if len(clientset.Actions()) != 0 {
			t.Errorf("cluster is touched")
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := configmap.New(); err != nil {
		t.Fatal(err)
	}
}

// args of the step in the compiled bridge pipeline, with parameters substituted.
func stepArgs(t *testing.T, step string, values map[string]string) []string {
	t.Helper()
	wf, err := pipeline.Bridge(bconf.Default()).Workflow()
	if err != nil {
		t.Fatal(err)
	}
	for _, tmpl := range wf.Spec.Templates {
		if tmpl.Name != step {
			continue
		}
		args := []string{}
		for _, a := range tmpl.Container.Args {
			for k, v := range values {
				a = strings.ReplaceAll(a, pipeline.Input(k), v)
			}
			args = append(args, a)
		}
		return args
	}
	t.Fatalf("step %s is not found", step)
	return nil
}

func TestCompiledStepsOnCommandline(t *testing.T) {
	for _, value := range []string{"", "-", "--", "-v", "-h", "--job-name=other", "a=b", "x y"} {
		t.Run("value "+strconv.Quote(value)+" is passed as it is", func(t *testing.T) {
			clientset := fake.NewSimpleClientset()
			cluster := k8s.AttachCluster(k8s.WrapK8sClient(clientset))

			values := map[string]string{
				pipeline.ParamJobName:             "job1",
				pipeline.ParamNamespace:           "ns1",
				pipeline.ParamResourceURL:         value,
				pipeline.ParamResourceSecret:      value,
				pipeline.ParamScript:              value,
				pipeline.ParamScriptLocation:      value,
				pipeline.ParamScriptMetadata:      value,
				pipeline.ParamScriptExtraLocation: value,
				pipeline.ParamAdditionalData:      value,
				pipeline.ParamJobProperties:       value,
				pipeline.ParamJobParameters:       value,
				pipeline.ParamUpdateInterval:      value,
			}

			run := func(sub string, args []string) {
				t.Helper()
				cmd, err := configmap.New()
				if err != nil {
					t.Fatal(err)
				}
				stderr := new(strings.Builder)
				code := flarc.Run(
					context.Background(), cmd,
					flarc.WithName("bridge configmap"),
					flarc.WithArgs(append([]string{sub}, args...)),
					flarc.WithParams([]any{common.CommonFlags{}, cluster}),
					flarc.WithOutput(nil, stderr),
				)
				if code != 0 {
					t.Fatalf("%s: exit code %d\n%s", sub, code, stderr.String())
				}
			}

			run("create", stepArgs(t, pipeline.StepCreateConfigMap, values))

			cm, err := clientset.CoreV1().ConfigMaps("ns1").Get(
				context.Background(), "job1-bridge-cm", kubeapimeta.GetOptions{},
			)
			if err != nil {
				t.Fatal(err)
			}
			expected := bridge.JobDescriptor{
				JobName:             "job1",
				Namespace:           "ns1",
				ResourceURL:         value,
				ResourceSecret:      value,
				Script:              value,
				ScriptLocation:      value,
				ScriptMetadata:      value,
				ScriptExtraLocation: value,
				AdditionalData:      value,
				JobProperties:       value,
				JobParameters:       value,
				UpdateInterval:      value,
			}
			if diff := cmp.Diff(expected.ConfigMapData(), cm.Data); diff != "" {
				t.Errorf("data (-want +got):\n%s", diff)
			}

			run("delete", stepArgs(t, pipeline.StepDeleteConfigMap, values))
			list, err := clientset.CoreV1().ConfigMaps("ns1").List(context.Background(), kubeapimeta.ListOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if len(list.Items) != 0 {
				t.Errorf("residual: %v", list.Items)
			}
		})
	}
}
