package status

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	"github.com/opst/bridgepipeline/pkg/bridge"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	"github.com/opst/bridgepipeline/pkg/utils/retry"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"
)

const ARG_JOBNAME = "JOBNAME"

type Flag struct {
	Namespace string `flag:"namespace" alias:"n" help:"required. namespace where the job is"`
	Wait      bool   `flag:"wait" alias:"w" help:"wait until the job on the external resource finishes"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the status of a bridge job.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_JOBNAME, Required: true,
				Help: "name of the job",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Show the status of a job on the external resource, as the bridge container reports
in the ConfigMap "<JOBNAME>-bridge-cm".

With --wait, it polls the ConfigMap until the job is COMPLETED, CANCELLED or FAILED.
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
		if flags.Namespace == "" {
			return fmt.Errorf("%w: --namespace is required", flarc.ErrUsage)
		}
		jobName := cl.Args()[ARG_JOBNAME][0]
		reader := bridge.NewReader(cluster)

		var status bridge.Status
		var err error
		if flags.Wait {
			status, err = retry.Blocking(
				ctx, retry.StaticBackoff(conf.Runner().PollInterval()),
				func() (bridge.Status, error) {
					s, err := reader.Status(ctx, jobName, flags.Namespace)
					if err != nil {
						return s, err
					}
					if !s.Finished() {
						return s, retry.ErrRetry
					}
					return s, nil
				},
			)
		} else {
			status, err = reader.Status(ctx, jobName, flags.Namespace)
		}
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cl.Stdout())
		defer enc.Close()
		if err := enc.Encode(status); err != nil {
			logger.Panicf("fail to dump status: %v", err)
		}
		return nil
	}
}
