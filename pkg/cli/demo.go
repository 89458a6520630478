package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"opcrdt/pkg/config"
	"opcrdt/pkg/crdt"
	"opcrdt/pkg/runtime"
	"opcrdt/pkg/transport"
	"opcrdt/pkg/util/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

// NewDemoCommand replicates one CRDT over an in-memory network, mutates it
// concurrently on every replica and prints the converged values.
func NewDemoCommand(opts *RootOptions) *cobra.Command {
	var (
		typeName string
		replicas int
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run concurrent mutations on replicas and show convergence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.InitDefault(cfg.Node.ID, cfg.Log.Level)
			if replicas > 0 {
				cfg.Transport.Replicas = replicas
			}

			converged, err := RunDemo(cmd.Context(), cmd.OutOrStdout(), cfg, typeName)
			if err != nil {
				return err
			}
			if !converged {
				return fmt.Errorf("replicas of %s did not converge", typeName)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", crdt.ORSetName, "CRDT type to replicate")
	cmd.Flags().IntVarP(&replicas, "replicas", "r", 0, "number of replicas, overrides the config")
	return cmd
}

type replica struct {
	name string
	node *transport.Node
	rt   *runtime.Runtime
}

// scenario mutates inst, the instance of one replica, concurrently with the
// others. Second-phase mutations run after the first phase was delivered.
type scenario struct {
	first  func(ctx context.Context, r replica, idx int, inst *runtime.Instance) error
	second func(ctx context.Context, r replica, idx int, inst *runtime.Instance) error
}

var scenarios = map[string]scenario{
	crdt.GCounterName: {
		first: func(ctx context.Context, _ replica, idx int, inst *runtime.Instance) error {
			return repeat(idx+1, func() error { return inst.Mutate(ctx, "increment") })
		},
	},
	crdt.PNCounterName: {
		first: func(ctx context.Context, _ replica, idx int, inst *runtime.Instance) error {
			if err := repeat(2, func() error { return inst.Mutate(ctx, "increment") }); err != nil {
				return err
			}
			return inst.Mutate(ctx, "decrement")
		},
	},
	crdt.GSetName: {
		first: addItem,
	},
	crdt.TwoPSetName: {
		first:  addItem,
		second: removeFirstItem,
	},
	crdt.ORSetName: {
		first:  addItem,
		second: removeFirstItem,
	},
	crdt.LWWSetName: {
		first:  addItem,
		second: removeFirstItem,
	},
	crdt.LWWRegisterName: {
		first: func(ctx context.Context, r replica, idx int, inst *runtime.Instance) error {
			if err := inst.Mutate(ctx, "set", "owner", r.name); err != nil {
				return err
			}
			if idx != 0 {
				return nil
			}
			// a register holding a nested counter
			hits, err := r.rt.Create(inst.ID()+"-hits", crdt.GCounterName)
			if err != nil {
				return err
			}
			if err := hits.Mutate(ctx, "increment"); err != nil {
				return err
			}
			return inst.Mutate(ctx, "set", "hits", hits)
		},
	},
	crdt.MVRegisterName: {
		first: func(ctx context.Context, r replica, _ int, inst *runtime.Instance) error {
			return inst.Mutate(ctx, "set", "owner", r.name)
		},
		second: func(ctx context.Context, r replica, idx int, inst *runtime.Instance) error {
			if idx != 0 {
				return nil
			}
			return inst.Mutate(ctx, "set", "owner", r.name+" (resolved)")
		},
	},
}

func addItem(ctx context.Context, _ replica, idx int, inst *runtime.Instance) error {
	return inst.Mutate(ctx, "add", fmt.Sprintf("item-%d", idx))
}

func removeFirstItem(ctx context.Context, _ replica, idx int, inst *runtime.Instance) error {
	if idx != 0 {
		return nil
	}
	return inst.Mutate(ctx, "remove", "item-0")
}

func repeat(n int, fn func() error) error {
	for range n {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// RunDemo runs the scenario of typeName and writes every replica's value to
// out. It reports whether all replicas ended with the same value.
func RunDemo(ctx context.Context, out io.Writer, cfg *config.Config, typeName string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sc, ok := scenarios[typeName]
	if !ok {
		return false, fmt.Errorf("%w: %q", crdt.ErrUnknownType, typeName)
	}

	store := crdt.DefaultStore()
	logger := logging.New(os.Stderr, cfg.Node.ID, logging.Level(cfg.Log.Level))

	netOpts := []transport.Option{
		transport.WithCopies(cfg.Transport.Copies),
		transport.WithLogger(logger),
	}
	if cfg.Transport.Codec == config.CodecJSON {
		netOpts = append(netOpts, transport.WithCodec(store))
	}
	network := transport.NewNetwork(netOpts...)

	var registry *prometheus.Registry
	var metrics *runtime.Metrics
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics = runtime.NewMetrics(cfg.Metrics.Namespace, registry)
	}

	replicas := make([]replica, cfg.Transport.Replicas)
	instances := make([]*runtime.Instance, len(replicas))
	for idx := range replicas {
		name := fmt.Sprintf("replica-%d", idx)
		node := network.Join(name)
		rt := runtime.New(node, store,
			runtime.WithLogger(logger.With("node", name)),
			runtime.WithMetrics(metrics),
			runtime.WithCacheShards(cfg.Cache.Shards),
			runtime.WithScaleThreshold(cfg.Cache.ScaleThreshold),
		)
		inst, err := rt.Create("demo-"+typeName, typeName)
		if err != nil {
			return false, err
		}
		replicas[idx] = replica{name: name, node: node, rt: rt}
		instances[idx] = inst
	}

	shuffler := rand.New(rand.NewPCG(uint64(len(replicas)), uint64(len(typeName))))
	for _, phase := range []func(context.Context, replica, int, *runtime.Instance) error{sc.first, sc.second} {
		if phase == nil {
			continue
		}
		for idx, r := range replicas {
			if err := phase(ctx, r, idx, instances[idx]); err != nil {
				return false, fmt.Errorf("%s: %w", r.name, err)
			}
		}
		// deliver in a different order on every replica
		for _, r := range replicas {
			r.node.Shuffle(shuffler)
		}
		if err := network.Flush(ctx); err != nil {
			return false, err
		}
	}

	// Nested instances encode as references, so equal encodings mean equal
	// values across runtimes.
	converged := true
	var reference []byte
	for idx, r := range replicas {
		encoded, err := json.Marshal(instances[idx].Value())
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s: %s\n", r.name, encoded)
		if idx == 0 {
			reference = encoded
		} else if !bytes.Equal(encoded, reference) {
			converged = false
		}
	}
	fmt.Fprintf(out, "converged: %t\n", converged)

	if registry != nil {
		if err := writeMetrics(out, registry); err != nil {
			return converged, err
		}
	}
	slog.Debug("demo finished", "type", typeName, "converged", converged)
	return converged, nil
}

// writeMetrics prints the gathered families in the Prometheus text format.
func writeMetrics(out io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
