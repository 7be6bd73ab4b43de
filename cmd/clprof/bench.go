package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/clprof/internal/cl"
	"github.com/cwbudde/clprof/internal/evtrace"
	"github.com/cwbudde/clprof/internal/prof"
)

var (
	benchIterations int
	benchSize       int
	benchTrace      string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Profile a buffer transfer workload on the OpenCL device",
	Long: `Runs buffer uploads and downloads on two profiling-enabled queues at the
same time, then prints the timing summary including the time the transfers
overlapped. Requires a build with -tags gpu.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 16, "Transfers per queue")
	benchCmd.Flags().IntVar(&benchSize, "size", 4<<20, "Buffer size in bytes")
	benchCmd.Flags().StringVar(&benchTrace, "trace", "", "Record the events to this trace file")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchIterations <= 0 || benchSize <= 0 {
		return fmt.Errorf("iterations and size must be positive")
	}

	rt, err := cl.InitOpenCL()
	if err != nil {
		return fmt.Errorf("failed to initialise OpenCL: %w", err)
	}
	defer rt.Close()
	slog.Info("Using OpenCL device", "platform", rt.Platform.Name, "device", rt.Device.Name)

	sess := prof.NewSession()
	defer sess.Close()

	queues := map[string]*cl.Queue{}
	for _, name := range []string{"upload", "download"} {
		q, err := rt.NewQueue(cl.QueueProfilingEnable)
		if err != nil {
			return fmt.Errorf("failed to create queue %s: %w", name, err)
		}
		sess.RegisterQueue(name, q)
		q.Release()
		queues[name] = q
	}

	src, err := rt.NewBuffer(benchSize)
	if err != nil {
		return fmt.Errorf("failed to create buffer: %w", err)
	}
	defer src.Release()
	dst, err := rt.NewBuffer(benchSize)
	if err != nil {
		return fmt.Errorf("failed to create buffer: %w", err)
	}
	defer dst.Release()

	slog.Info("Starting transfers", "iterations", benchIterations, "size", humanize.IBytes(uint64(benchSize)))

	sess.StartTimer()
	var g errgroup.Group
	g.Go(func() error {
		data := make([]byte, benchSize)
		return transfer(queues["upload"], "write", benchIterations, func(q *cl.Queue) (*cl.Event, error) {
			return q.EnqueueWriteBuffer(src, data)
		})
	})
	g.Go(func() error {
		data := make([]byte, benchSize)
		return transfer(queues["download"], "read", benchIterations, func(q *cl.Queue) (*cl.Event, error) {
			return q.EnqueueReadBuffer(dst, data)
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}
	sess.StopTimer()

	if benchTrace != "" {
		if err := recordTrace(benchTrace, sess.Queues(), queues); err != nil {
			return err
		}
	}

	if err := sess.Compute(); err != nil {
		return fmt.Errorf("failed to compute session: %w", err)
	}
	c := currentConfig()
	fmt.Print(sess.Summary(c.AggSort(), c.OverlapSort()))
	return nil
}

// transfer enqueues n commands on q, names their events and ends with a
// marker once the queue has drained.
func transfer(q *cl.Queue, name string, n int, enqueue func(*cl.Queue) (*cl.Event, error)) error {
	for i := 0; i < n; i++ {
		ev, err := enqueue(q)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s %d: %w", name, i, err)
		}
		ev.SetName(name)
	}
	if _, err := q.EnqueueMarker(); err != nil {
		return fmt.Errorf("failed to enqueue marker: %w", err)
	}
	return q.Finish()
}

func recordTrace(path string, names []string, queues map[string]*cl.Queue) error {
	var recs []evtrace.Record
	for _, name := range names {
		captured, err := evtrace.Capture(name, queues[name])
		if err != nil {
			return err
		}
		recs = append(recs, captured...)
	}
	if err := evtrace.WriteFile(path, recs); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	slog.Info("Trace recorded", "path", path, "records", len(recs))
	return nil
}
