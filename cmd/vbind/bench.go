package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vbind/internal/config"
	"github.com/vango-dev/vbind/internal/errors"
	"github.com/vango-dev/vbind/pkg/live"
	"github.com/vango-dev/vbind/pkg/protocol"
	"github.com/vango-dev/vbind/pkg/reconcile"
	"github.com/vango-dev/vbind/pkg/vdom"
)

type profile struct {
	Name         string
	Clients      int
	Duration     time.Duration
	RPS          float64
	ListSize     int
	PayloadBytes int
	ReverseEvery int
}

var profiles = map[string]profile{
	"fast": {
		Name:         "fast",
		Clients:      20,
		Duration:     5 * time.Second,
		RPS:          20,
		ListSize:     20,
		PayloadBytes: 24,
		ReverseEvery: 10,
	},
	"standard": {
		Name:         "standard",
		Clients:      100,
		Duration:     20 * time.Second,
		RPS:          50,
		ListSize:     50,
		PayloadBytes: 24,
		ReverseEvery: 20,
	},
	"stress": {
		Name:         "stress",
		Clients:      400,
		Duration:     60 * time.Second,
		RPS:          200,
		ListSize:     200,
		PayloadBytes: 24,
		ReverseEvery: 50,
	},
}

type benchConfig struct {
	Profile      string
	Clients      int
	Duration     time.Duration
	RPS          float64
	ListSize     int
	PayloadBytes int
	ReverseEvery int
	EventTimeout time.Duration
}

type benchCounters struct {
	updates     atomic.Uint64
	reversals   atomic.Uint64
	delivered   atomic.Uint64
	patchFrames atomic.Uint64
	patchBytes  atomic.Uint64
	patches     atomic.Uint64
}

type benchErrors struct {
	dialFailures     atomic.Uint64
	snapshotFailures atomic.Uint64
	decodeFailures   atomic.Uint64
	errorFrames      atomic.Uint64
	mutationFailures atomic.Uint64
}

type patchOpCounts struct {
	counts [256]atomic.Uint64
}

func (p *patchOpCounts) add(op vdom.PatchOp) {
	p.counts[uint8(op)].Add(1)
}

func (p *patchOpCounts) snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	for i := range p.counts {
		if n := p.counts[i].Load(); n > 0 {
			out[vdom.PatchOp(i).String()] = n
		}
	}
	return out
}

type benchOptions struct {
	profile      string
	clients      int
	duration     time.Duration
	rps          float64
	list         int
	payloadBytes int
	reverseEvery int
	jsonOut      string
}

func benchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure patch delivery latency against an in-process host",
		Long: `Measure patch delivery latency against an in-process host.

bench starts a live host on a loopback port, connects --clients WebSocket
clients and rewrites one item's text --rps times a second. Every
--reverse-every mutations the list is reversed instead. Latency is the
time from the mutation to a client decoding the matching SetText patch.

Examples:
  vbind bench --profile fast
  vbind bench --clients 50 --duration 10s --json report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			report, err := runBench(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), report)
			if opts.jsonOut != "" {
				return writeReport(cmd.OutOrStdout(), opts.jsonOut, report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.profile, "profile", "fast", "fast, standard or stress")
	cmd.Flags().IntVar(&opts.clients, "clients", 0, "Concurrent WebSocket clients")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "How long to drive mutations")
	cmd.Flags().Float64Var(&opts.rps, "rps", 0, "Mutations per second")
	cmd.Flags().IntVar(&opts.list, "list", 0, "Items in the list")
	cmd.Flags().IntVar(&opts.payloadBytes, "payload-bytes", 0, "Bytes of text per update")
	cmd.Flags().IntVar(&opts.reverseEvery, "reverse-every", 0, "Reverse the list every N mutations (-1 never)")
	cmd.Flags().StringVar(&opts.jsonOut, "json", "", "Write a JSON report to this path ('-' for stdout)")

	return cmd
}

// config starts from the named profile and applies the flags that were set.
func (o benchOptions) config(cmd *cobra.Command) (benchConfig, error) {
	name := strings.ToLower(strings.TrimSpace(o.profile))
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, errors.New("VB403").
			WithDetail(fmt.Sprintf("unknown profile %q", o.profile)).
			WithSuggestion("Use one of fast, standard or stress")
	}

	cfg := benchConfig{
		Profile:      base.Name,
		Clients:      base.Clients,
		Duration:     base.Duration,
		RPS:          base.RPS,
		ListSize:     base.ListSize,
		PayloadBytes: base.PayloadBytes,
		ReverseEvery: base.ReverseEvery,
	}
	flags := cmd.Flags()
	if flags.Changed("clients") {
		cfg.Clients = o.clients
	}
	if flags.Changed("duration") {
		cfg.Duration = o.duration
	}
	if flags.Changed("rps") {
		cfg.RPS = o.rps
	}
	if flags.Changed("list") {
		cfg.ListSize = o.list
	}
	if flags.Changed("payload-bytes") {
		cfg.PayloadBytes = o.payloadBytes
	}
	if flags.Changed("reverse-every") {
		cfg.ReverseEvery = o.reverseEvery
	}

	var bad string
	switch {
	case cfg.Clients <= 0:
		bad = "--clients must be > 0"
	case cfg.Duration <= 0:
		bad = "--duration must be > 0"
	case cfg.RPS <= 0:
		bad = "--rps must be > 0"
	case cfg.ListSize <= 0:
		bad = "--list must be > 0"
	case cfg.PayloadBytes <= 0:
		bad = "--payload-bytes must be > 0"
	}
	if bad != "" {
		return benchConfig{}, errors.New("VB403").WithDetail(bad)
	}

	cfg.EventTimeout = eventTimeout(cfg.RPS)
	return cfg, nil
}

// eventTimeout is how long a client may take to see an update.
func eventTimeout(rps float64) time.Duration {
	timeout := time.Duration(float64(time.Second)/rps) * 20
	return min(max(timeout, 2*time.Second), 10*time.Second)
}

type benchReport struct {
	Version   string        `json:"version"`
	Run       runInfo       `json:"run"`
	Workload  workloadInfo  `json:"workload"`
	LatencyMS latencyInfo   `json:"latency_ms"`
	Mutations mutationInfo  `json:"mutations"`
	Protocol  protocolInfo  `json:"protocol"`
	Errors    errorInfo     `json:"errors"`
	Memory    memoryInfo    `json:"memory"`
	Reconcile reconcileInfo `json:"reconcile"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	Version   string `json:"vbind_version"`
}

type workloadInfo struct {
	Profile        string  `json:"profile"`
	Clients        int     `json:"clients"`
	DurationMS     int64   `json:"duration_ms"`
	RPS            float64 `json:"rps"`
	ListSize       int     `json:"list_size"`
	PayloadBytes   int     `json:"payload_bytes"`
	ReverseEvery   int     `json:"reverse_every"`
	EventTimeoutMS int64   `json:"event_timeout_ms"`
}

type latencyInfo struct {
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Max     float64 `json:"max"`
}

type mutationInfo struct {
	Updates   uint64  `json:"updates"`
	Reversals uint64  `json:"reversals"`
	PerSec    float64 `json:"per_sec"`
}

type protocolInfo struct {
	PatchFrames     uint64            `json:"patch_frames"`
	PatchBytes      uint64            `json:"patch_bytes"`
	Patches         uint64            `json:"patches"`
	AvgFrameBytes   float64           `json:"avg_frame_bytes"`
	PatchesPerFrame float64           `json:"patches_per_frame"`
	PatchOps        map[string]uint64 `json:"patch_ops"`
}

type errorInfo struct {
	DialFailures     uint64 `json:"dial_failures"`
	SnapshotFailures uint64 `json:"snapshot_failures"`
	DecodeFailures   uint64 `json:"decode_failures"`
	ErrorFrames      uint64 `json:"error_frames"`
	MutationFailures uint64 `json:"mutation_failures"`
	Missing          uint64 `json:"missing_updates"`
}

type reconcileInfo struct {
	Created int `json:"created"`
	Reused  int `json:"reused"`
	Moved   int `json:"moved"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

type memoryInfo struct {
	AllocMB    float64 `json:"alloc_mb"`
	HeapLiveMB float64 `json:"heap_live_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// bench holds one run's shared state.
type bench struct {
	cfg      benchConfig
	counters benchCounters
	errs     benchErrors
	ops      patchOpCounts
	pending  sync.Map        // token -> time.Time
	totals   reconcile.Stats // written only by drive

	mu      sync.Mutex
	samples []time.Duration
}

// runBench drives one benchmark to completion and reports on it.
func runBench(ctx context.Context, cfg benchConfig) (benchReport, error) {
	b := &bench{cfg: cfg}

	items := make([]any, cfg.ListSize)
	for i := range items {
		items[i] = map[string]any{"id": i, "title": "item-" + strconv.Itoa(i)}
	}

	hostCfg := config.Default()
	hostCfg.TextField = "title"
	hostCfg.MetricsPath = "-"
	host := live.NewHost(hostCfg,
		live.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		live.WithItems(items),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		host.Close()
		return benchReport{}, errors.New("VB502").Wrap(err)
	}
	srv := &http.Server{Handler: host.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)

	wsURL := "ws://" + ln.Addr().String() + "/ws"

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	var clients sync.WaitGroup
	ready := make(chan struct{}, cfg.Clients)
	for range cfg.Clients {
		clients.Add(1)
		go func() {
			defer clients.Done()
			b.runClient(wsURL, ready)
		}()
	}
	connected := 0
	for range cfg.Clients {
		select {
		case <-ready:
			connected++
		case <-time.After(cfg.EventTimeout):
		}
	}

	driveCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	start := time.Now()
	b.drive(driveCtx, host, items)
	cancel()
	elapsed := time.Since(start)

	expected := b.counters.updates.Load() * uint64(connected)
	deadline := time.Now().Add(cfg.EventTimeout)
	for b.counters.delivered.Load() < expected && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	host.Close()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	srv.Shutdown(shutdownCtx)
	done()
	clients.Wait()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	return b.report(elapsed, expected, before, after), nil
}

// drive mutates the list at the configured rate until ctx is done.
func (b *bench) drive(ctx context.Context, host *live.Host, items []any) {
	period := time.Duration(float64(time.Second) / b.cfg.RPS)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	// A mutation in flight when ctx expires still completes, so every
	// counted update is one the host applied.
	mctx := context.WithoutCancel(ctx)

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		seq++

		if b.cfg.ReverseEvery > 0 && seq%uint64(b.cfg.ReverseEvery) == 0 {
			stats, err := host.Reverse(mctx)
			if err != nil {
				b.errs.mutationFailures.Add(1)
				continue
			}
			b.add(stats)
			slices.Reverse(items)
			b.counters.reversals.Add(1)
			continue
		}

		token := makeToken(seq, b.cfg.PayloadBytes)
		i := int(seq % uint64(len(items)))
		prev := items[i].(map[string]any)
		items[i] = map[string]any{"id": prev["id"], "title": token}

		b.pending.Store(token, time.Now())
		stats, err := host.Replace(mctx, slices.Clone(items))
		if err != nil {
			b.pending.Delete(token)
			items[i] = prev
			b.errs.mutationFailures.Add(1)
			continue
		}
		b.add(stats)
		b.counters.updates.Add(1)
	}
}

func (b *bench) add(s reconcile.Stats) {
	b.totals.Created += s.Created
	b.totals.Reused += s.Reused
	b.totals.Moved += s.Moved
	b.totals.Removed += s.Removed
	b.totals.Updated += s.Updated
}

// runClient reads the snapshot, signals ready, then records the latency
// of every SetText patch that carries a pending token. It returns when
// the connection closes.
func (b *bench) runClient(url string, ready chan<- struct{}) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		b.errs.dialFailures.Add(1)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(b.cfg.EventTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		b.errs.snapshotFailures.Add(1)
		return
	}
	if ft, _, err := protocol.DecodeFrame(msg); err != nil || ft != protocol.FrameSnapshot {
		b.errs.snapshotFailures.Add(1)
		return
	}
	conn.SetReadDeadline(time.Time{})
	ready <- struct{}{}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ft, payload, err := protocol.DecodeFrame(msg)
		if err != nil {
			b.errs.decodeFailures.Add(1)
			continue
		}
		switch ft {
		case protocol.FramePatches:
			b.counters.patchFrames.Add(1)
			b.counters.patchBytes.Add(uint64(len(msg)))
			patches, err := protocol.DecodePatches(payload)
			if err != nil {
				b.errs.decodeFailures.Add(1)
				continue
			}
			b.observe(patches)
		case protocol.FrameError:
			b.errs.errorFrames.Add(1)
		}
	}
}

func (b *bench) observe(patches []vdom.Patch) {
	now := time.Now()
	for _, p := range patches {
		b.ops.add(p.Op)
		b.counters.patches.Add(1)
		if p.Op != vdom.PatchSetText {
			continue
		}
		sent, ok := b.pending.Load(p.Value)
		if !ok {
			continue
		}
		b.counters.delivered.Add(1)
		b.mu.Lock()
		b.samples = append(b.samples, now.Sub(sent.(time.Time)))
		b.mu.Unlock()
	}
}

// makeToken returns a unique text of exactly n bytes for seq.
func makeToken(seq uint64, n int) string {
	base := "t" + strconv.FormatUint(seq, 36)
	if len(base) >= n {
		return base[len(base)-n:]
	}
	return base + strings.Repeat("x", n-len(base))
}

func (b *bench) report(elapsed time.Duration, expected uint64, before, after runtime.MemStats) benchReport {
	b.mu.Lock()
	latencies := slices.Clone(b.samples)
	b.mu.Unlock()
	slices.Sort(latencies)

	latency := latencyInfo{Samples: len(latencies)}
	if len(latencies) > 0 {
		latency.Min = ms(latencies[0])
		latency.P50 = ms(percentile(latencies, 0.50))
		latency.P95 = ms(percentile(latencies, 0.95))
		latency.P99 = ms(percentile(latencies, 0.99))
		latency.Max = ms(latencies[len(latencies)-1])
	}

	updates := b.counters.updates.Load()
	reversals := b.counters.reversals.Load()
	frames := b.counters.patchFrames.Load()
	patchBytes := b.counters.patchBytes.Load()
	patches := b.counters.patches.Load()

	proto := protocolInfo{
		PatchFrames: frames,
		PatchBytes:  patchBytes,
		Patches:     patches,
		PatchOps:    b.ops.snapshot(),
	}
	if frames > 0 {
		proto.AvgFrameBytes = float64(patchBytes) / float64(frames)
		proto.PatchesPerFrame = float64(patches) / float64(frames)
	}

	var missing uint64
	if delivered := b.counters.delivered.Load(); delivered < expected {
		missing = expected - delivered
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			Version:   version,
		},
		Workload: workloadInfo{
			Profile:        b.cfg.Profile,
			Clients:        b.cfg.Clients,
			DurationMS:     b.cfg.Duration.Milliseconds(),
			RPS:            b.cfg.RPS,
			ListSize:       b.cfg.ListSize,
			PayloadBytes:   b.cfg.PayloadBytes,
			ReverseEvery:   b.cfg.ReverseEvery,
			EventTimeoutMS: b.cfg.EventTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Mutations: mutationInfo{
			Updates:   updates,
			Reversals: reversals,
			PerSec:    float64(updates+reversals) / math.Max(0.001, elapsed.Seconds()),
		},
		Protocol: proto,
		Errors: errorInfo{
			DialFailures:     b.errs.dialFailures.Load(),
			SnapshotFailures: b.errs.snapshotFailures.Load(),
			DecodeFailures:   b.errs.decodeFailures.Load(),
			ErrorFrames:      b.errs.errorFrames.Load(),
			MutationFailures: b.errs.mutationFailures.Load(),
			Missing:          missing,
		},
		Memory: memoryInfo{
			AllocMB:    float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB: float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:      after.NumGC - before.NumGC,
		},
		Reconcile: reconcileInfo(b.totals),
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeSummary(w io.Writer, r benchReport) {
	fmt.Fprintln(w, "=== vbind bench ===")
	fmt.Fprintf(w, "Profile: %s\n", r.Workload.Profile)
	fmt.Fprintf(w, "Clients: %d\n", r.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(r.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target rate: %.2f mutations/s\n", r.Workload.RPS)
	fmt.Fprintf(w, "List size: %d\n", r.Workload.ListSize)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Updates: %d, reversals: %d (%.1f/s)\n", r.Mutations.Updates, r.Mutations.Reversals, r.Mutations.PerSec)
	fmt.Fprintf(w, "Missing updates: %d\n", r.Errors.Missing)
	fmt.Fprintln(w)

	if r.LatencyMS.Samples == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintf(w, "Delivery latency (%d samples):\n", r.LatencyMS.Samples)
		fmt.Fprintf(w, "  min: %.2f ms\n", r.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", r.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", r.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", r.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", r.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Protocol:")
	fmt.Fprintf(w, "  patch frames: %d (%.1f bytes avg)\n", r.Protocol.PatchFrames, r.Protocol.AvgFrameBytes)
	fmt.Fprintf(w, "  patches/frame: %.2f\n", r.Protocol.PatchesPerFrame)
	ops := make([]string, 0, len(r.Protocol.PatchOps))
	for op := range r.Protocol.PatchOps {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	for _, op := range ops {
		fmt.Fprintf(w, "  %s: %d\n", op, r.Protocol.PatchOps[op])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime:")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", r.Memory.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", r.Memory.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", r.Memory.NumGC)
}

func writeReport(stdout io.Writer, path string, report benchReport) error {
	out := stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return errors.New("VB501").Wrap(err).WithDetail(path)
		}
		defer file.Close()
		out = file
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
