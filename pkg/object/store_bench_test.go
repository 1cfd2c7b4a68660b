package object

import (
	"crypto/rand"
	"testing"
)

func benchmarkWrite(b *testing.B, algo HashAlgorithm, size int) {
	s := NewStore(b.TempDir(), WithHashAlgorithm(algo))

	// Distinct payloads so every write misses the Has fast path.
	payloads := make([][]byte, b.N)
	for i := range payloads {
		buf := make([]byte, size)
		if _, err := rand.Read(buf); err != nil {
			b.Fatalf("rand.Read: %v", err)
		}
		payloads[i] = buf
	}

	b.ReportAllocs()
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Write(TypeBlob, payloads[i]); err != nil {
			b.Fatalf("Write: %v", err)
		}
	}
}

func BenchmarkStoreWrite(b *testing.B) {
	for _, algo := range []HashAlgorithm{SHA256, BLAKE2b} {
		b.Run(string(algo)+"/100B", func(b *testing.B) { benchmarkWrite(b, algo, 100) })
		b.Run(string(algo)+"/100KB", func(b *testing.B) { benchmarkWrite(b, algo, 100<<10) })
	}
}

// BenchmarkStoreRead includes decompression and the re-hash done on every
// read.
func BenchmarkStoreRead(b *testing.B) {
	s := NewStore(b.TempDir())
	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		b.Fatalf("rand.Read: %v", err)
	}
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		b.Fatalf("Write: %v", err)
	}

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		typ, got, err := s.Read(h)
		if err != nil {
			b.Fatalf("Read: %v", err)
		}
		if typ != TypeBlob || len(got) != len(data) {
			b.Fatalf("Read = %s %d bytes", typ, len(got))
		}
	}
}
