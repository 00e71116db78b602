package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/modelrelay/provider"
)

func TestCatalog_FetchesOnceWithinTTL(t *testing.T) {
	c := newCatalog(time.Minute)
	var fetches atomic.Int64
	fetch := func(context.Context) ([]provider.ModelInfo, error) {
		fetches.Add(1)
		return []provider.ModelInfo{{Name: "m1"}}, nil
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		models, err := c.get(ctx, "p1", fetch)
		if err != nil {
			t.Fatalf("get() error = %v", err)
		}
		if len(models) != 1 || models[0].Name != "m1" {
			t.Fatalf("models = %+v", models)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestCatalog_RefetchesAfterTTL(t *testing.T) {
	c := newCatalog(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	var fetches atomic.Int64
	fetch := func(context.Context) ([]provider.ModelInfo, error) {
		fetches.Add(1)
		return []provider.ModelInfo{{Name: "m1"}}, nil
	}

	ctx := context.Background()
	if _, err := c.get(ctx, "p1", fetch); err != nil {
		t.Fatalf("get() error = %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := c.get(ctx, "p1", fetch); err != nil {
		t.Fatalf("get() error = %v", err)
	}
	if n := fetches.Load(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestCatalog_ErrorNotCached(t *testing.T) {
	c := newCatalog(time.Minute)
	var fetches atomic.Int64
	boom := errors.New("backend down")
	fetch := func(context.Context) ([]provider.ModelInfo, error) {
		if fetches.Add(1) == 1 {
			return nil, boom
		}
		return []provider.ModelInfo{{Name: "m1"}}, nil
	}

	ctx := context.Background()
	if _, err := c.get(ctx, "p1", fetch); !errors.Is(err, boom) {
		t.Fatalf("get() error = %v, want %v", err, boom)
	}
	models, err := c.get(ctx, "p1", fetch)
	if err != nil {
		t.Fatalf("get() after failure error = %v", err)
	}
	if len(models) != 1 {
		t.Errorf("len(models) = %d, want 1", len(models))
	}
}

func TestCatalog_ConcurrentFetchesCollapse(t *testing.T) {
	c := newCatalog(time.Minute)
	var fetches atomic.Int64
	release := make(chan struct{})
	fetch := func(context.Context) ([]provider.ModelInfo, error) {
		fetches.Add(1)
		<-release
		return []provider.ModelInfo{{Name: "m1"}}, nil
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.get(ctx, "p1", fetch); err != nil {
				t.Errorf("get() error = %v", err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestCatalog_ReturnsDefensiveCopy(t *testing.T) {
	c := newCatalog(time.Minute)
	fetch := func(context.Context) ([]provider.ModelInfo, error) {
		return []provider.ModelInfo{{Name: "m1"}}, nil
	}

	ctx := context.Background()
	first, _ := c.get(ctx, "p1", fetch)
	first[0].Name = "mutated"

	second, _ := c.get(ctx, "p1", fetch)
	if second[0].Name != "m1" {
		t.Errorf("cached list corrupted by caller mutation: %q", second[0].Name)
	}
}

func TestManager_ListModelsCachesPerProvider(t *testing.T) {
	p1 := newMockAdapter("p1")
	p1.models = []provider.ModelInfo{{Name: "a", Provider: "p1"}}
	p2 := newMockAdapter("p2")
	p2.models = []provider.ModelInfo{{Name: "b", Provider: "p2"}}

	m := NewManager(noCache())
	m.RegisterProvider(p1, RegisterOptions{Priority: 1})
	m.RegisterProvider(p2, RegisterOptions{Priority: 2})

	ctx := context.Background()

	all, err := m.ListModels(ctx, "")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	// Inside the TTL the backends are not consulted again.
	if _, err := m.ListModels(ctx, ""); err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	p1.mu.Lock()
	lists := p1.lists
	p1.mu.Unlock()
	if lists != 1 {
		t.Errorf("p1 list calls = %d, want 1", lists)
	}

	if _, err := m.ListModels(ctx, "ghost"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("ListModels(ghost) error = %v, want ErrUnknownProvider", err)
	}
}

func TestManager_RefreshModelsInvalidates(t *testing.T) {
	p1 := newMockAdapter("p1")
	p1.models = []provider.ModelInfo{{Name: "a", Provider: "p1"}}

	m := NewManager(noCache())
	m.RegisterProvider(p1, RegisterOptions{})

	ctx := context.Background()
	if _, err := m.ListModels(ctx, "p1"); err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}

	m.RefreshModels("p1")
	if _, err := m.ListModels(ctx, "p1"); err != nil {
		t.Fatalf("ListModels() after refresh error = %v", err)
	}

	p1.mu.Lock()
	lists := p1.lists
	p1.mu.Unlock()
	if lists != 2 {
		t.Errorf("p1 list calls = %d, want 2", lists)
	}
}

func TestManager_ListModelsPartialBackendFailure(t *testing.T) {
	p1 := newMockAdapter("p1")
	p1.listErr = errors.New("down")
	p2 := newMockAdapter("p2")
	p2.models = []provider.ModelInfo{{Name: "b", Provider: "p2"}}

	m := NewManager(noCache())
	m.RegisterProvider(p1, RegisterOptions{Priority: 1})
	m.RegisterProvider(p2, RegisterOptions{Priority: 2})

	all, err := m.ListModels(context.Background(), "")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(all) != 1 || all[0].Name != "b" {
		t.Errorf("models = %+v, want just p2's", all)
	}
}
