package pipeline

import (
	"github.com/opst/bridgepipeline/pkg/bridge"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	ptr "github.com/opst/bridgepipeline/pkg/utils/pointer"
	kubecore "k8s.io/api/core/v1"
)

const (
	BridgePipelineName        = "bridge-pipeline"
	BridgePipelineDescription = "Pipeline to invoke execution on external resource"

	// default file name of the compiled bridge pipeline.
	BridgePipelineOutput = "bridge_pipeline.yaml"
)

// names of steps in the bridge pipeline
const (
	StepCreateConfigMap = "create-config-map"
	StepBridgePod       = "bridge-pod"
	StepDeleteConfigMap = "delete-config-map"
)

// names of parameters of the bridge pipeline
const (
	ParamJobName             = "jobname"
	ParamNamespace           = "namespace"
	ParamResourceURL         = "resourceURL"
	ParamResourceSecret      = "resourcesecret"
	ParamScript              = "script"
	ParamScriptLocation      = "scriptlocation"
	ParamDocker              = "docker"
	ParamArguments           = "arguments"
	ParamScriptMetadata      = "scriptmd"
	ParamScriptExtraLocation = "scriptextraloc"
	ParamAdditionalData      = "additionaldata"
	ParamJobProperties       = "jobproperties"
	ParamJobParameters       = "jobparams"
	ParamUpdateInterval      = "updateinterval"
	ParamImagePullPolicy     = "imagepullpolicy"
)

const (
	DefaultUpdateInterval  = "20"
	DefaultImagePullPolicy = string(bridge.DefaultImagePullPolicy)
)

// flagArg passes a parameter as one `--name=value` token.
//
// Values are opaque: "-", "--" or "-v" would be taken for flags if they were separate tokens.
func flagArg(name string, param string) string {
	return "--" + name + "=" + Input(param)
}

func required(name string) Param {
	return Param{Name: name}
}

func optional(name string, defaultValue string) Param {
	return Param{Name: name, Default: ptr.Ref(defaultValue)}
}

// Bridge builds the bridge pipeline: create-config-map, bridge-pod and delete-config-map in order.
//
// ConfigMap steps run `bridge configmap` subcommands with the step image in conf.
func Bridge(conf *bconf.BridgeConfig) *Pipeline {
	createInputs := []string{
		ParamJobName, ParamNamespace, ParamResourceURL, ParamResourceSecret,
		ParamScript, ParamScriptLocation, ParamScriptMetadata, ParamAdditionalData,
		ParamScriptExtraLocation, ParamJobProperties, ParamJobParameters, ParamUpdateInterval,
	}
	create := Step{
		Name: StepCreateConfigMap,
		Container: kubecore.Container{
			Image:   conf.StepImage(),
			Command: []string{"bridge", "configmap", "create"},
			Args: []string{
				flagArg("job-name", ParamJobName),
				flagArg("namespace", ParamNamespace),
				flagArg("resource-url", ParamResourceURL),
				flagArg("resource-secret", ParamResourceSecret),
				flagArg("script", ParamScript),
				flagArg("script-location", ParamScriptLocation),
				flagArg("script-metadata", ParamScriptMetadata),
				flagArg("additional-data", ParamAdditionalData),
				flagArg("script-extra-location", ParamScriptExtraLocation),
				flagArg("job-properties", ParamJobProperties),
				flagArg("job-parameters", ParamJobParameters),
				flagArg("update-interval", ParamUpdateInterval),
			},
		},
		Inputs:            createInputs,
		MaxCacheStaleness: NoCache,
	}

	inv := bridge.Invocation{
		JobName:         Input(ParamJobName),
		Namespace:       Input(ParamNamespace),
		ResourceSecret:  Input(ParamResourceSecret),
		Image:           Input(ParamDocker),
		Arguments:       Input(ParamArguments),
		ImagePullPolicy: Input(ParamImagePullPolicy),
	}
	invoke := Step{
		Name:      StepBridgePod,
		Container: inv.Container(),
		Volumes:   inv.Volumes(),
		Inputs: []string{
			ParamJobName, ParamNamespace, ParamResourceSecret,
			ParamDocker, ParamArguments, ParamImagePullPolicy,
		},
		DependsOn:         []string{StepCreateConfigMap},
		MaxCacheStaleness: NoCache,
	}

	del := Step{
		Name: StepDeleteConfigMap,
		Container: kubecore.Container{
			Image:   conf.StepImage(),
			Command: []string{"bridge", "configmap", "delete"},
			Args: []string{
				flagArg("job-name", ParamJobName),
				flagArg("namespace", ParamNamespace),
			},
		},
		Inputs:            []string{ParamJobName, ParamNamespace},
		DependsOn:         []string{StepBridgePod},
		MaxCacheStaleness: NoCache,
	}

	return &Pipeline{
		Name:        BridgePipelineName,
		Description: BridgePipelineDescription,
		Params: []Param{
			required(ParamJobName),
			required(ParamNamespace),
			required(ParamResourceURL),
			required(ParamResourceSecret),
			required(ParamScript),
			required(ParamScriptLocation),
			required(ParamDocker),
			required(ParamArguments),
			optional(ParamScriptMetadata, ""),
			optional(ParamScriptExtraLocation, ""),
			optional(ParamAdditionalData, ""),
			optional(ParamJobProperties, ""),
			optional(ParamJobParameters, ""),
			optional(ParamUpdateInterval, DefaultUpdateInterval),
			optional(ParamImagePullPolicy, DefaultImagePullPolicy),
		},
		Steps:          []Step{create, invoke, del},
		ServiceAccount: conf.ServiceAccount(),
	}
}

// Values are arguments of the bridge pipeline, for local runs.
type Values struct {
	JobName        string
	Namespace      string
	ResourceURL    string
	ResourceSecret string
	Script         string
	ScriptLocation string

	// image of the bridge container
	Docker string

	// the argument of `sh -c` in the bridge container
	Arguments string

	ScriptMetadata      string
	ScriptExtraLocation string
	AdditionalData      string
	JobProperties       string
	JobParameters       string

	// default: DefaultUpdateInterval
	UpdateInterval string

	// default: DefaultImagePullPolicy
	ImagePullPolicy string
}

// Descriptor returns what create-config-map writes.
func (v Values) Descriptor() bridge.JobDescriptor {
	interval := v.UpdateInterval
	if interval == "" {
		interval = DefaultUpdateInterval
	}
	return bridge.JobDescriptor{
		JobName:             v.JobName,
		Namespace:           v.Namespace,
		ResourceURL:         v.ResourceURL,
		ResourceSecret:      v.ResourceSecret,
		Script:              v.Script,
		ScriptLocation:      v.ScriptLocation,
		ScriptMetadata:      v.ScriptMetadata,
		ScriptExtraLocation: v.ScriptExtraLocation,
		AdditionalData:      v.AdditionalData,
		JobProperties:       v.JobProperties,
		JobParameters:       v.JobParameters,
		UpdateInterval:      interval,
	}
}

// Invocation returns what bridge-pod runs.
func (v Values) Invocation() bridge.Invocation {
	return bridge.Invocation{
		JobName:         v.JobName,
		Namespace:       v.Namespace,
		ResourceSecret:  v.ResourceSecret,
		Image:           v.Docker,
		Arguments:       v.Arguments,
		ImagePullPolicy: v.ImagePullPolicy,
	}
}
