package benchmark

import (
	"context"
	"testing"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
)

// BenchmarkSessionAuthenticate benchmarks session creation at various scales.
func BenchmarkSessionAuthenticate(b *testing.B) {
	runWithSessionCounts(b, SmallSessionCounts, func(b *testing.B, preload int) {
		m := newBenchManager(b, preload)
		m.prefill(b, preload)
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			_, err := m.Authenticate(ctx, &service.AuthenticateRequest{
				ClientID: m.clients[i%len(m.clients)],
				Secret:   benchSecret,
				ClientIP: "192.0.2.1",
			})
			if err != nil {
				b.Fatalf("Authenticate failed: %v", err)
			}
		}

		b.StopTimer()
		reportMemory(b, "mem")
	})
}

// BenchmarkSessionAuthenticateParallel measures contention on the registry.
func BenchmarkSessionAuthenticateParallel(b *testing.B) {
	m := newBenchManager(b, 10000)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, err := m.Authenticate(ctx, &service.AuthenticateRequest{
				ClientID: m.clients[i%len(m.clients)],
				Secret:   benchSecret,
				ClientIP: "192.0.2.1",
			})
			if err != nil {
				b.Errorf("Authenticate failed: %v", err)
				return
			}
			i++
		}
	})
}

// BenchmarkSessionAuthorize benchmarks the per-request token check.
func BenchmarkSessionAuthorize(b *testing.B) {
	runWithSessionCounts(b, SmallSessionCounts, func(b *testing.B, count int) {
		m := newBenchManager(b, count)
		sessions := m.prefill(b, count)
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			s := sessions[i%len(sessions)]
			_, err := m.Authorize(ctx, &service.AuthorizeRequest{
				SessionID: s.ID,
				ClientIP:  s.ClientIP,
				Kind:      domain.TokenAccess,
				Token:     s.AccessToken.Raw,
			})
			if err != nil {
				b.Fatalf("Authorize failed: %v", err)
			}
		}
	})
}

// BenchmarkSessionRotate benchmarks rotation of a live session.
func BenchmarkSessionRotate(b *testing.B) {
	m := newBenchManager(b, 1000)
	sessions := m.prefill(b, 1000)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		idx := i % len(sessions)
		next, err := m.Rotate(ctx, sessions[idx].ID)
		if err != nil {
			b.Fatalf("Rotate failed: %v", err)
		}
		sessions[idx] = next
	}
}

// BenchmarkSessionReset benchmarks closing every session of one client.
func BenchmarkSessionReset(b *testing.B) {
	m := newBenchManager(b, sessionsPerClient)
	ctx := context.Background()
	tid := m.clients[0]

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < sessionsPerClient; j++ {
			if _, err := m.Authenticate(ctx, &service.AuthenticateRequest{
				ClientID: tid, Secret: benchSecret, ClientIP: "192.0.2.1",
			}); err != nil {
				b.Fatal(err)
			}
		}
		b.StartTimer()

		n, err := m.ResetClient(ctx, &service.ResetClientRequest{ClientID: tid, ResetCookie: benchCookie})
		if err != nil {
			b.Fatalf("ResetClient failed: %v", err)
		}
		if n != sessionsPerClient {
			b.Fatalf("ResetClient closed %d sessions, want %d", n, sessionsPerClient)
		}
	}
}
