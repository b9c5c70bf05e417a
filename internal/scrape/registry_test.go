package scrape

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExtractor struct {
	host   string
	result Result
	calls  int
}

func (s *stubExtractor) CanHandle(url string) bool {
	return strings.Contains(url, s.host)
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (Result, error) {
	s.calls++
	return s.result, nil
}

func TestRegistryFirstMatchWins(t *testing.T) {
	price := 10.0
	first := &stubExtractor{host: "shop.example", result: Result{Price: &price, Source: "first"}}
	second := &stubExtractor{host: "shop.example", result: Result{Source: "second"}}
	r := NewRegistry(zap.NewNop(), first, second)

	res, err := r.Extract(context.Background(), "https://shop.example/item/1")
	require.NoError(t, err)
	require.Equal(t, "first", res.Source)
	require.Equal(t, 1, first.calls)
	require.Zero(t, second.calls)
}

func TestRegistryUnsupportedURL(t *testing.T) {
	e := &stubExtractor{host: "shop.example"}
	r := NewRegistry(zap.NewNop(), e)

	res, err := r.Extract(context.Background(), "https://other.example/item/1")
	require.NoError(t, err)
	require.Equal(t, SourceUnknown, res.Source)
	require.Nil(t, res.Price)
	require.Zero(t, e.calls)

	require.Nil(t, r.Resolve("https://other.example/item/1"))
}
