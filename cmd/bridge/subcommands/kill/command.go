package kill

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	"github.com/opst/bridgepipeline/pkg/bridge"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	k8s "github.com/opst/bridgepipeline/pkg/workloads/k8s"
	"github.com/youta-t/flarc"
)

const ARG_JOBNAME = "JOBNAME"

type Flag struct {
	Namespace string `flag:"namespace" alias:"n" help:"required. namespace where the job is"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Request cancellation of a bridge job.",
		Flag{},
		flarc.Args{
			{
				Name: ARG_JOBNAME, Required: true,
				Help: "name of the job",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Set "kill: true" in the ConfigMap "<JOBNAME>-bridge-cm".
The bridge container cancels the job on the external resource when it finds the flag.

This command does not wait for the cancellation. Use "status --wait" to see it.
`),
	)
}

func Task() common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ *bconf.BridgeConfig,
		cluster k8s.Cluster,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		if flags.Namespace == "" {
			return fmt.Errorf("%w: --namespace is required", flarc.ErrUsage)
		}
		jobName := cl.Args()[ARG_JOBNAME][0]

		if err := bridge.NewReader(cluster).RequestKill(ctx, jobName, flags.Namespace); err != nil {
			return err
		}
		logger.Printf("kill is requested for job %s in %s.", jobName, flags.Namespace)
		return nil
	}
}
