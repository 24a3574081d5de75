package embedding

import (
	"context"
	"math"
	"testing"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	a, err := p.Embed(ctx, []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.Embed(ctx, []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a[0]) != LocalDimension || len(b[0]) != LocalDimension {
		t.Fatalf("expected dimension %d, got %d and %d", LocalDimension, len(a[0]), len(b[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("expected deterministic output, differed at index %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestLocalProviderPreservesOrder(t *testing.T) {
	p := NewLocalProvider()
	inputs := []string{"alpha beta", "gamma delta", "epsilon zeta"}

	vecs, err := p.Embed(context.Background(), inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != len(inputs) {
		t.Fatalf("expected %d vectors, got %d", len(inputs), len(vecs))
	}

	solo, err := p.Embed(context.Background(), []string{inputs[1]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range solo[0] {
		if solo[0][i] != vecs[1][i] {
			t.Fatalf("expected batch embedding to match solo embedding at position 1")
		}
	}
}

func TestLocalProviderL2Normalized(t *testing.T) {
	p := NewLocalProvider()
	vecs, err := p.Embed(context.Background(), []string{"fact checking claims about elections"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sumSquares float64
	for _, v := range vecs[0] {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("expected unit-normalized vector, got norm %v", norm)
	}
}

func TestLocalProviderRejectsEmptyBatch(t *testing.T) {
	p := NewLocalProvider()
	if _, err := p.Embed(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
