package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/asyncqueue/queueing"
)

type pipelineConfig struct {
	Capacity    int
	Order       queueing.Order
	Producers   int
	Consumers   int
	Items       int
	Batch       int
	Rate        float64
	Timeout     time.Duration
	RecordPath  string
	Monitor     bool
	MonitorPort int
	OpenBrowser bool
	LogEvents   bool
}

// envFlags maps environment variables to the flags they provide defaults
// for.
var envFlags = map[string]string{
	"ASYNCQ_CAPACITY":     "capacity",
	"ASYNCQ_ORDER":        "order",
	"ASYNCQ_PRODUCERS":    "producers",
	"ASYNCQ_CONSUMERS":    "consumers",
	"ASYNCQ_ITEMS":        "items",
	"ASYNCQ_BATCH":        "batch",
	"ASYNCQ_RATE":         "rate",
	"ASYNCQ_TIMEOUT":      "timeout",
	"ASYNCQ_MONITOR_PORT": "monitor-port",
}

// applyEnv sets every flag that was not given on the command line from its
// environment variable, if present.
func applyEnv(flags *pflag.FlagSet) error {
	for env, name := range envFlags {
		value, ok := os.LookupEnv(env)
		if !ok || flags.Lookup(name) == nil || flags.Changed(name) {
			continue
		}

		err := flags.Set(name, value)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}

	return nil
}

func parsePipelineConfig(cmd *cobra.Command) (pipelineConfig, error) {
	flags := cmd.Flags()

	err := applyEnv(flags)
	if err != nil {
		return pipelineConfig{}, err
	}

	cfg := pipelineConfig{}
	cfg.Capacity, _ = flags.GetInt("capacity")
	cfg.Producers, _ = flags.GetInt("producers")
	cfg.Consumers, _ = flags.GetInt("consumers")
	cfg.Items, _ = flags.GetInt("items")
	cfg.Batch, _ = flags.GetInt("batch")
	cfg.Rate, _ = flags.GetFloat64("rate")
	cfg.Timeout, _ = flags.GetDuration("timeout")
	cfg.RecordPath, _ = flags.GetString("record")
	cfg.Monitor, _ = flags.GetBool("monitor")
	cfg.MonitorPort, _ = flags.GetInt("monitor-port")
	cfg.OpenBrowser, _ = flags.GetBool("open-browser")
	cfg.LogEvents, _ = flags.GetBool("log-events")

	order, _ := flags.GetString("order")
	cfg.Order, err = queueing.ParseOrder(order)
	if err != nil {
		return pipelineConfig{}, err
	}

	return cfg, cfg.validate()
}

func (c pipelineConfig) validate() error {
	switch {
	case c.Capacity < 0:
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	case c.Producers < 1 || c.Consumers < 1:
		return fmt.Errorf("need at least one producer and one consumer")
	case c.Items < 0:
		return fmt.Errorf("items must not be negative, got %d", c.Items)
	case c.Batch < 1:
		return fmt.Errorf("batch must be at least 1, got %d", c.Batch)
	case c.Rate < 0:
		return fmt.Errorf("rate must not be negative, got %v", c.Rate)
	}

	return nil
}
