package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/JonMunkholm/dsvmender/internal/config"
)

// generateReleases builds a releases file of n rows where every fourth row
// has an extra delimiter inside its notes and every tenth drops its notes.
func generateReleases(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("version,date,notes\n")
	for i := 0; i < n; i++ {
		switch {
		case i%10 == 9:
			fmt.Fprintf(&buf, "v%d,2024-01-%02d\n", i, i%28+1)
		case i%4 == 3:
			fmt.Fprintf(&buf, "v%d,2024-01-%02d,fixes, cleanup and docs\n", i, i%28+1)
		default:
			fmt.Fprintf(&buf, "v%d,2024-01-%02d,release %d\n", i, i%28+1, i)
		}
	}
	return buf.Bytes()
}

// ============================================================================
// Stream Repair Benchmarks
// ============================================================================

// BenchmarkRepairStream measures whole-file repair, the hot path of a job.
func BenchmarkRepairStream(b *testing.B) {
	for _, rows := range []int{100, 1000, 10000} {
		data := generateReleases(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			p := releasesProfile()
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := RepairStream(context.Background(), p, bytes.NewReader(data), io.Discard, RepairOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRepairStream_AllValid is the floor: no row needs mending.
func BenchmarkRepairStream_AllValid(b *testing.B) {
	var buf bytes.Buffer
	buf.WriteString("version,date,notes\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&buf, "v%d,2024-01-01,release\n", i)
	}
	data := buf.Bytes()
	p := releasesProfile()

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RepairStream(context.Background(), p, bytes.NewReader(data), io.Discard, RepairOptions{})
	}
}

// ============================================================================
// Synchronous API Benchmarks
// ============================================================================

// BenchmarkMendRows measures a full synchronous batch including mender
// construction from the profile.
func BenchmarkMendRows(b *testing.B) {
	Clear()
	b.Cleanup(Clear)
	MustRegister(releasesProfile())

	lines := strings.Split(strings.TrimSpace(string(generateReleases(100))), "\n")[1:]
	svc := NewService(nil, config.RepairConfig{MaxSyncRows: 1000, MaxDepth: 20, OptimizeThreshold: -1})
	req := MendRequest{Lines: lines}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.MendRows(context.Background(), "releases", req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkOptimizeRow measures the empty-run pre-pass on a wide row.
func BenchmarkOptimizeRow(b *testing.B) {
	Clear()
	b.Cleanup(Clear)
	MustRegister(releasesProfile())

	svc := NewService(nil, config.RepairConfig{OptimizeThreshold: -1})
	row := append([]string{"v1"}, make([]string, 40)...)
	row = append(row, "notes")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.OptimizeRow("releases", 0, 1, row)
	}
}
