package run

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	"github.com/opst/bridgepipeline/pkg/pipeline"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"github.com/youta-t/flarc"
)

type Flag struct {
	JobName        string `flag:"job-name" help:"required. name of the job"`
	Namespace      string `flag:"namespace" alias:"n" help:"required. namespace where the job runs"`
	ResourceURL    string `flag:"resource-url" help:"required. address of the external resource"`
	ResourceSecret string `flag:"resource-secret" help:"required. name of the Secret with credentials for the external resource"`
	Script         string `flag:"script" help:"required. script name or content"`
	ScriptLocation string `flag:"script-location" metavar:"inline|s3|remote" help:"required. where the script is"`
	Image          string `flag:"image" metavar:"image[:tag]" help:"required. image of the bridge container"`
	Arguments      string `flag:"arguments" help:"required. argument for 'sh -c' in the bridge container"`

	ScriptMetadata      string `flag:"script-metadata" metavar:"bucket:file" help:"script metadata"`
	ScriptExtraLocation string `flag:"script-extra-location" help:"location for script extra components"`
	AdditionalData      string `flag:"additional-data" help:"extra files required"`
	JobProperties       string `flag:"job-properties" help:"job properties"`
	JobParameters       string `flag:"job-parameters" help:"job parameters"`
	UpdateInterval      string `flag:"update-interval" metavar:"SECONDS" help:"poll interval of the external resource"`
	ImagePullPolicy     string `flag:"image-pull-policy" metavar:"Always|IfNotPresent|Never" help:"image pull policy of the bridge container"`

	Log     bool `flag:"log" help:"print the log of the bridge container after it finishes"`
	KeepJob bool `flag:"keep-job" help:"do not delete the k8s Job of the bridge container after it finishes"`
}

func (f Flag) Values() pipeline.Values {
	return pipeline.Values{
		JobName:             f.JobName,
		Namespace:           f.Namespace,
		ResourceURL:         f.ResourceURL,
		ResourceSecret:      f.ResourceSecret,
		Script:              f.Script,
		ScriptLocation:      f.ScriptLocation,
		Docker:              f.Image,
		Arguments:           f.Arguments,
		ScriptMetadata:      f.ScriptMetadata,
		ScriptExtraLocation: f.ScriptExtraLocation,
		AdditionalData:      f.AdditionalData,
		JobProperties:       f.JobProperties,
		JobParameters:       f.JobParameters,
		UpdateInterval:      f.UpdateInterval,
		ImagePullPolicy:     f.ImagePullPolicy,
	}
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run the bridge pipeline on a cluster directly.",
		Flag{
			UpdateInterval:  pipeline.DefaultUpdateInterval,
			ImagePullPolicy: pipeline.DefaultImagePullPolicy,
		},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Run steps of the bridge pipeline without workflow engine:

1. create the ConfigMap "<job-name>-bridge-cm",
2. run the bridge container as a k8s Job and wait for it,
3. delete the ConfigMap.

Step 3 runs whether the bridge container succeeds or not.
When this command is interrupted while step 2, the Job is aborted and the ConfigMap is left.

	{{ .Command }} --job-name job1 --namespace ns1 \
		--resource-url https://hpc.example.com --resource-secret cred1 \
		--script run.sh --script-location s3 \
		--image myrepo/bridge:latest --arguments ./run.sh
`),
	)
}

func Task() common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		conf *bconf.BridgeConfig,
		cluster k8s.Cluster,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		for _, r := range []struct{ flag, value string }{
			{flag: "--job-name", value: flags.JobName},
			{flag: "--namespace", value: flags.Namespace},
			{flag: "--resource-url", value: flags.ResourceURL},
			{flag: "--resource-secret", value: flags.ResourceSecret},
			{flag: "--script", value: flags.Script},
			{flag: "--script-location", value: flags.ScriptLocation},
			{flag: "--image", value: flags.Image},
			{flag: "--arguments", value: flags.Arguments},
		} {
			if r.value == "" {
				return fmt.Errorf("%w: %s is required", flarc.ErrUsage, r.flag)
			}
		}

		runner := pipeline.NewRunner(cluster, conf.Runner())
		if flags.Log {
			runner.Invoker().Log = cl.Stdout()
		}
		runner.Invoker().KeepJob = flags.KeepJob

		outcome, err := runner.Run(ctx, flags.Values())
		if outcome.Job != "" && outcome.Status != "" {
			logger.Printf(
				"bridge container (job %s) has been %s. exit code: %d",
				outcome.Job, outcome.Status, outcome.ExitCode,
			)
		}
		return err
	}
}
