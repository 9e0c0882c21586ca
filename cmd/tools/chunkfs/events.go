package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/soltixdb/chunkfs/internal/config"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/spf13/cobra"
)

var eventSubjects = map[string]string{
	"worker":      models.SubjectWorkerEvents,
	"replication": models.SubjectReplicationEvents,
	"recovery":    models.SubjectRecoveryEvents,
	"namespace":   models.SubjectNamespaceEvents,
}

func newEventsCmd() *cobra.Command {
	var (
		configPath string
		kinds      []string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream cluster events from the configured queue",
		Long: `Subscribe to the event queue the namenode publishes to and print every event.

The queue is read from the namenode configuration file.

Examples:
  chunkfs events --config configs/namenode.yml
  chunkfs events --config configs/namenode.yml --kind worker --kind recovery`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			q, err := queue.NewQueue(cfg.Queue)
			if err != nil {
				return fmt.Errorf("connect to queue: %w", err)
			}
			defer func() { _ = q.Close() }()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			for _, kind := range kinds {
				subject, ok := eventSubjects[kind]
				if !ok {
					return fmt.Errorf("unknown event kind %q", kind)
				}
				if err := q.Subscribe(subject, func(data []byte) error {
					mu.Lock()
					defer mu.Unlock()
					_, err := fmt.Fprintf(out, "%s %s\n", subject, data)
					return err
				}); err != nil {
					return fmt.Errorf("subscribe %s: %w", subject, err)
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %v on %s queue, Ctrl-C to stop\n", kinds, cfg.Queue.Type)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "namenode configuration file")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", []string{"worker", "replication", "recovery", "namespace"}, "event kinds to watch")
	return cmd
}
