package sluggen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewRandom(t *testing.T) {
	gen := NewRandom()
	if gen == nil {
		t.Fatal("NewRandom() returned nil")
	}
}

func TestRandomGenerator_Generate(t *testing.T) {
	t.Run("generates slug of correct length", func(t *testing.T) {
		gen := NewRandom()

		lengths := []int{1, 5, 7, 10, 15, 20, 32}
		for _, length := range lengths {
			slug, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}

			if len(slug) != length {
				t.Errorf("Generate(%d) returned length %d, want %d", length, len(slug), length)
			}
		}
	})

	t.Run("generates unique slugs", func(t *testing.T) {
		gen := NewRandom()
		seen := make(map[string]bool)

		// Generate 1000 slugs and ensure they're all unique
		for i := 0; i < 1000; i++ {
			slug, err := gen.Generate(10)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}

			if seen[slug] {
				t.Errorf("Generate() produced duplicate slug: %q", slug)
			}
			seen[slug] = true
		}

		if len(seen) != 1000 {
			t.Errorf("expected 1000 unique slugs, got %d", len(seen))
		}
	})

	t.Run("generates only characters from the slug alphabet", func(t *testing.T) {
		gen := NewRandom()

		for _, length := range []int{10, 50, 100} {
			slug, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}

			for i, char := range slug {
				if !strings.ContainsRune(slugChars, char) {
					t.Errorf("Generate(%d) produced invalid character %c at position %d", length, char, i)
				}
			}
		}
	})

	t.Run("never produces ambiguous characters", func(t *testing.T) {
		gen := NewRandom()

		for range 100 {
			slug, err := gen.Generate(20)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if strings.ContainsAny(slug, "0o1il") {
				t.Errorf("slug %q contains an ambiguous character", slug)
			}
		}
	})

	t.Run("returns error for zero length", func(t *testing.T) {
		gen := NewRandom()

		_, err := gen.Generate(0)
		if err == nil {
			t.Error("Generate(0) expected error, got nil")
		}

		expectedMsg := "length must be positive"
		if err.Error() != expectedMsg {
			t.Errorf("error message = %q, want %q", err.Error(), expectedMsg)
		}
	})

	t.Run("returns error for negative length", func(t *testing.T) {
		gen := NewRandom()

		_, err := gen.Generate(-1)
		if err == nil {
			t.Error("Generate(-1) expected error, got nil")
		}
	})

	t.Run("concurrent generation is safe", func(t *testing.T) {
		gen := NewRandom()
		const goroutines = 50
		const iterations = 100

		var wg sync.WaitGroup
		results := make(chan string, goroutines*iterations)
		errChan := make(chan error, goroutines*iterations)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					slug, err := gen.Generate(10)
					if err != nil {
						errChan <- err
						return
					}
					results <- slug
				}
			}()
		}

		wg.Wait()
		close(results)
		close(errChan)

		for err := range errChan {
			t.Errorf("concurrent Generate() error: %v", err)
		}

		seen := make(map[string]bool)
		count := 0
		for slug := range results {
			count++
			if seen[slug] {
				t.Errorf("concurrent generation produced duplicate: %q", slug)
			}
			seen[slug] = true
		}

		expectedCount := goroutines * iterations
		if count != expectedCount {
			t.Errorf("expected %d slugs, got %d", expectedCount, count)
		}
	})
}

func TestSlugChars(t *testing.T) {
	if len(slugChars) != 31 {
		t.Errorf("slugChars length = %d, want 31", len(slugChars))
	}

	seen := make(map[rune]bool)
	for _, char := range slugChars {
		if seen[char] {
			t.Errorf("slugChars contains duplicate character: %c", char)
		}
		seen[char] = true
	}

	if strings.ContainsAny(slugChars, "0o1il") {
		t.Error("slugChars must not contain ambiguous characters")
	}
}

// Benchmark tests
func BenchmarkRandomGenerator_Generate(b *testing.B) {
	gen := NewRandom()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := gen.Generate(7)
		if err != nil {
			b.Fatalf("Generate() error: %v", err)
		}
	}
}

func BenchmarkRandomGenerator_Generate_Parallel(b *testing.B) {
	gen := NewRandom()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, err := gen.Generate(7)
			if err != nil {
				b.Fatalf("Generate() error: %v", err)
			}
		}
	})
}
