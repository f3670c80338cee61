package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/common"
	subcompile "github.com/opst/bridgepipeline/cmd/bridge/subcommands/compile"
	subcm "github.com/opst/bridgepipeline/cmd/bridge/subcommands/configmap"
	subkill "github.com/opst/bridgepipeline/cmd/bridge/subcommands/kill"
	"github.com/opst/bridgepipeline/cmd/bridge/subcommands/logger"
	subrun "github.com/opst/bridgepipeline/cmd/bridge/subcommands/run"
	substatus "github.com/opst/bridgepipeline/cmd/bridge/subcommands/status"
	"github.com/opst/bridgepipeline/pkg/utils/try"
	"github.com/youta-t/flarc"
	"k8s.io/klog/v2"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	klog.InitFlags(flag.CommandLine)
	if v := os.Getenv("BRIDGE_VERBOSITY"); v != "" {
		if err := flag.Set("v", v); err != nil {
			logger.Fatalf("BRIDGE_VERBOSITY: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	compile := try.To(subcompile.New()).OrFatal(logger)
	run := try.To(subrun.New()).OrFatal(logger)
	configmap := try.To(subcm.New()).OrFatal(logger)
	status := try.To(substatus.New()).OrFatal(logger)
	kill := try.To(subkill.New()).OrFatal(logger)

	bridge := try.To(
		flarc.NewCommandGroup(
			"Bridge pipeline: invoke execution on an external resource from Kubernetes.",
			common.Flags(),
			flarc.WithSubcommand("compile", compile),
			flarc.WithSubcommand("run", run),
			flarc.WithSubcommand("configmap", configmap),
			flarc.WithSubcommand("status", status),
			flarc.WithSubcommand("kill", kill),
		),
	).OrFatal(logger)

	code := flarc.Run(ctx, bridge, flarc.WithHelp(true))
	klog.Flush()
	os.Exit(code)
}
