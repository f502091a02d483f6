package bloom

import "testing"

func BenchmarkBloom_Positive(b *testing.B) {
	const n = 100_000
	f := NewFactory().New(n, 0.01)
	for i := uint64(0); i < n; i++ {
		f.Add(2000000000 + i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.MightContain(2000000000 + uint64(i%n))
	}
}

func BenchmarkBloom_Negative(b *testing.B) {
	const n = 100_000
	f := NewFactory().New(n, 0.01)
	for i := uint64(0); i < n; i++ {
		f.Add(2000000000 + i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.MightContain(5000000000 + uint64(i%n))
	}
}
