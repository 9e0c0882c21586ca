package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

type benchConfig struct {
	Dir             string
	Duration        time.Duration
	UploadWorkers   int
	DownloadWorkers int
	FileSize        int
	Chunks          int
}

// benchStats collects latencies of one operation kind
type benchStats struct {
	mu         sync.Mutex
	latencies  []float64
	firstError string
	success    int64
	errors     int64
}

func (s *benchStats) record(start time.Time, err error) {
	latency := time.Since(start).Seconds() * 1000 // ms
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, latency)
	if err != nil {
		s.errors++
		if s.firstError == "" {
			s.firstError = err.Error()
		}
		return
	}
	s.success++
}

// benchResult is the summary of one operation kind
type benchResult struct {
	Operation  string
	TotalOps   int64
	SuccessOps int64
	ErrorOps   int64
	Duration   time.Duration
	Throughput float64 // ops/sec
	AvgLatency float64 // ms
	MinLatency float64 // ms
	MaxLatency float64 // ms
	P50Latency float64 // ms
	P95Latency float64 // ms
	P99Latency float64 // ms
	ErrorMsg   string
}

// uploaded tracks file names that downloads may pick from
type uploaded struct {
	mu    sync.RWMutex
	names []string
}

func (u *uploaded) add(name string) {
	u.mu.Lock()
	u.names = append(u.names, name)
	u.mu.Unlock()
}

func (u *uploaded) pick(r *rand.Rand) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if len(u.names) == 0 {
		return "", false
	}
	return u.names[r.Intn(len(u.names))], true
}

func newBenchCmd(opts *globalOptions) *cobra.Command {
	cfg := benchConfig{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test uploads and downloads against a namenode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.FileSize < 1 || cfg.Chunks < 1 {
				return fmt.Errorf("size and chunks must be positive")
			}
			client := opts.client()
			if cfg.Dir != "/" {
				if err := client.postForm("/create_directory", url.Values{"directory_path": {cfg.Dir}}, nil); err != nil {
					var apiErr *apiError
					if !errors.As(err, &apiErr) || apiErr.Status != 409 {
						return fmt.Errorf("create bench directory: %w", err)
					}
				}
			}

			up, down := runBench(client, cfg)
			out := cmd.OutOrStdout()
			displayResult(out, up)
			fmt.Fprintln(out)
			displayResult(out, down)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfg.Dir, "dir", "d", "/bench", "directory the files are uploaded to")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "benchmark duration")
	cmd.Flags().IntVar(&cfg.UploadWorkers, "upload-workers", 4, "concurrent uploaders")
	cmd.Flags().IntVar(&cfg.DownloadWorkers, "download-workers", 4, "concurrent downloaders")
	cmd.Flags().IntVar(&cfg.FileSize, "size", 256*1024, "bytes per uploaded file")
	cmd.Flags().IntVarP(&cfg.Chunks, "chunks", "n", 4, "chunks per uploaded file")
	return cmd
}

func runBench(client *apiClient, cfg benchConfig) (benchResult, benchResult) {
	var (
		upStats, downStats benchStats
		files              uploaded
		wg                 sync.WaitGroup
		seq                int64
	)
	stopCh := make(chan struct{})
	startTime := time.Now()

	payload := make([]byte, cfg.FileSize)
	rand.New(rand.NewSource(startTime.UnixNano())).Read(payload)

	for i := 0; i < cfg.UploadWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-stopCh:
					return
				default:
				}
				name := fmt.Sprintf("bench-%d-%d-%d", startTime.Unix(), id, atomic.AddInt64(&seq, 1))
				start := time.Now()
				_, err := client.upload(name, cfg.Dir, cfg.Chunks, payload)
				upStats.record(start, err)
				if err == nil {
					files.add(name)
				}
			}
		}(i)
	}

	for i := 0; i < cfg.DownloadWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(startTime.UnixNano() + int64(id)))
			for {
				select {
				case <-stopCh:
					return
				default:
				}
				name, ok := files.pick(r)
				if !ok {
					time.Sleep(10 * time.Millisecond)
					continue
				}
				start := time.Now()
				_, err := client.postFormRaw("/get_file", url.Values{"file_name": {name}, "directory_path": {cfg.Dir}})
				downStats.record(start, err)
			}
		}(i)
	}

	time.Sleep(cfg.Duration)
	close(stopCh)
	wg.Wait()
	elapsed := time.Since(startTime)

	return calculateResult("Upload", &upStats, elapsed), calculateResult("Download", &downStats, elapsed)
}

func calculateResult(operation string, s *benchStats, duration time.Duration) benchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := benchResult{
		Operation:  operation,
		TotalOps:   s.success + s.errors,
		SuccessOps: s.success,
		ErrorOps:   s.errors,
		Duration:   duration,
		ErrorMsg:   s.firstError,
	}
	if len(s.latencies) == 0 {
		return result
	}

	// Sort for percentiles
	latencies := append([]float64(nil), s.latencies...)
	sort.Float64s(latencies)

	result.Throughput = float64(s.success) / duration.Seconds()
	result.MinLatency = latencies[0]
	result.MaxLatency = latencies[len(latencies)-1]
	result.P50Latency = percentile(latencies, 50)
	result.P95Latency = percentile(latencies, 95)
	result.P99Latency = percentile(latencies, 99)

	var sum float64
	for _, lat := range latencies {
		sum += lat
	}
	result.AvgLatency = sum / float64(len(latencies))
	return result
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Ceil(float64(len(sorted))*p/100.0)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func displayResult(w io.Writer, r benchResult) {
	fmt.Fprintf(w, "=== %s Operations ===\n", r.Operation)
	fmt.Fprintf(w, "Total Operations: %d\n", r.TotalOps)
	if r.TotalOps > 0 {
		fmt.Fprintf(w, "Success:          %d (%.2f%%)\n", r.SuccessOps, float64(r.SuccessOps)/float64(r.TotalOps)*100)
		fmt.Fprintf(w, "Errors:           %d (%.2f%%)\n", r.ErrorOps, float64(r.ErrorOps)/float64(r.TotalOps)*100)
	}
	fmt.Fprintf(w, "Duration:         %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Throughput:       %.2f ops/sec\n", r.Throughput)
	if r.ErrorOps > 0 && r.ErrorMsg != "" {
		fmt.Fprintf(w, "First Error:      %s\n", r.ErrorMsg)
	}
	fmt.Fprintf(w, "\nLatency (ms):\n")
	fmt.Fprintf(w, "  Min:  %.2f\n", r.MinLatency)
	fmt.Fprintf(w, "  Avg:  %.2f\n", r.AvgLatency)
	fmt.Fprintf(w, "  P50:  %.2f\n", r.P50Latency)
	fmt.Fprintf(w, "  P95:  %.2f\n", r.P95Latency)
	fmt.Fprintf(w, "  P99:  %.2f\n", r.P99Latency)
	fmt.Fprintf(w, "  Max:  %.2f\n", r.MaxLatency)
}
