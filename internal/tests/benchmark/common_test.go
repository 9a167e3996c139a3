package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
)

// SessionCounts defines the session counts for benchmarking.
var SessionCounts = []int{5000, 10000, 20000, 50000, 100000}

// SmallSessionCounts for quick benchmarks.
var SmallSessionCounts = []int{1000, 5000, 10000}

const (
	benchSecret     = "bench-secret"
	benchCookie     = "bench-reset"
	benchIterations = 1

	// sessionsPerClient spreads prefilled sessions over clients.
	sessionsPerClient = 100
)

// benchManager is a session manager with clients sized for count sessions.
type benchManager struct {
	*service.SessionManager
	clients []string
}

func newBenchManager(b *testing.B, count int) *benchManager {
	b.Helper()

	n := count/sessionsPerClient + 1
	records := make([]*domain.ClientCredential, 0, n)
	clients := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tid := fmt.Sprintf("client-%d", i)
		// Room for prefill plus everything the benchmark loop adds.
		rec, err := service.NewClientCredential(tid, 1<<30, benchSecret, benchCookie, benchIterations)
		if err != nil {
			b.Fatal(err)
		}
		records = append(records, rec)
		clients = append(clients, tid)
	}

	creds, err := service.NewCredentialStore(records, benchIterations)
	if err != nil {
		b.Fatal(err)
	}

	m := service.NewSessionManager(&service.SessionManagerConfig{
		Credentials: creds,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	b.Cleanup(func() { m.Shutdown(context.Background()) })
	return &benchManager{SessionManager: m, clients: clients}
}

// prefill opens count sessions round-robin over the clients.
func (m *benchManager) prefill(b *testing.B, count int) []*domain.Session {
	b.Helper()

	ctx := context.Background()
	sessions := make([]*domain.Session, count)
	for i := range sessions {
		s, err := m.Authenticate(ctx, &service.AuthenticateRequest{
			ClientID: m.clients[i%len(m.clients)],
			Secret:   benchSecret,
			ClientIP: "192.0.2.1",
		})
		if err != nil {
			b.Fatalf("prefill: %v", err)
		}
		sessions[i] = s
	}
	return sessions
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithSessionCounts runs a benchmark function with various session counts.
func runWithSessionCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("sessions_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
