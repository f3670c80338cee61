package compile

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	bconf "github.com/opst/bridgepipeline/pkg/configs/bridge"
	"github.com/opst/bridgepipeline/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Output string `flag:"output" alias:"o" metavar:"path/to/workflow.yaml" help:"where the compiled workflow is written. '-' means stdout."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Compile the bridge pipeline into a workflow document.",
		Flag{Output: pipeline.BridgePipelineOutput},
		flarc.Args{},
		common.NewConfigTask(Task()),
		flarc.WithDescription(`
Compile the bridge pipeline into an Argo Workflow document,
which Kubeflow Pipelines can upload.

Images and service account of the workflow are taken from the bridge config (--config).

	{{ .Command }} --output bridge_pipeline.yaml
`),
	)
}

func Task() common.ConfigTask[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		conf *bconf.BridgeConfig,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		output := cl.Flags().Output
		if output == "" {
			return fmt.Errorf("%w: --output should not be empty", flarc.ErrUsage)
		}

		doc, err := pipeline.Compile(pipeline.Bridge(conf))
		if err != nil {
			return err
		}

		if output == "-" {
			_, err := cl.Stdout().Write(doc)
			return err
		}
		if err := os.WriteFile(output, doc, os.FileMode(0644)); err != nil {
			return err
		}
		logger.Printf("pipeline %s is compiled: %s", pipeline.BridgePipelineName, output)
		return nil
	}
}
