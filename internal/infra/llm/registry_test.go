package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type stubProvider struct {
	id     string
	reply  string
	err    error
	called int
	mu     sync.Mutex
}

func (s *stubProvider) Generate(_ context.Context, _ []Turn) (string, error) {
	s.mu.Lock()
	s.called++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: s.id, Provider: "stub", Kind: "local"}
}

func TestRegistry_Register_FirstBecomesActive(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alpha", &stubProvider{id: "alpha"})
	r.Register("beta", &stubProvider{id: "beta"})

	if got := r.ActiveName(); got != "alpha" {
		t.Fatalf("active = %q, want %q", got, "alpha")
	}
}

func TestRegistry_SetActive_SwitchesProvider(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alpha", &stubProvider{id: "alpha", reply: "from alpha"})
	r.Register("beta", &stubProvider{id: "beta", reply: "from beta"})

	if err := r.SetActive("beta"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	out, err := r.Generate(context.Background(), "", []Turn{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "from beta" {
		t.Fatalf("out = %q, want %q", out, "from beta")
	}
}

func TestRegistry_SetActive_UnknownName_ReturnsNotFoundAndKeepsActive(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alpha", &stubProvider{id: "alpha"})

	err := r.SetActive("ghost")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("err = %v, want ErrProviderNotFound", err)
	}
	if got := r.ActiveName(); got != "alpha" {
		t.Fatalf("active after failed switch = %q, want %q", got, "alpha")
	}
}

func TestRegistry_Generate_EmptyRegistry_ReturnsNoProviderAvailable(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Generate(context.Background(), "", []Turn{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("err = %v, want ErrNoProviderAvailable", err)
	}
}

func TestRegistry_Generate_NamedProvider_BypassesActive(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alpha", &stubProvider{id: "alpha", reply: "from alpha"})
	r.Register("beta", &stubProvider{id: "beta", reply: "from beta"})

	out, err := r.Generate(context.Background(), "beta", []Turn{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "from beta" {
		t.Fatalf("out = %q, want %q", out, "from beta")
	}
}

func TestRegistry_Generate_ProviderError_WrapsWithName(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	r := NewRegistry()
	r.Register("alpha", &stubProvider{id: "alpha", err: boom})

	_, err := r.Generate(context.Background(), "", []Turn{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	want := fmt.Sprintf("provider %s: %v", "alpha", boom)
	if err.Error() != want {
		t.Fatalf("err = %q, want %q", err.Error(), want)
	}
}

func TestRegistry_Names_PreservesRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("gemini", &stubProvider{id: "gemini"})
	r.Register("ollama", &stubProvider{id: "ollama"})

	names := r.Names()
	if len(names) != 2 || names[0] != "gemini" || names[1] != "ollama" {
		t.Fatalf("names = %v, want [gemini ollama]", names)
	}
}

func TestRegistry_SetActive_ConcurrentSwaps_NoTornReads(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alpha", &stubProvider{id: "alpha", reply: "a"})
	r.Register("beta", &stubProvider{id: "beta", reply: "b"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := "alpha"
			if i%2 == 0 {
				name = "beta"
			}
			if err := r.SetActive(name); err != nil {
				t.Errorf("SetActive: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			out, err := r.Generate(context.Background(), "", []Turn{{Role: RoleUser, Content: "x"}})
			if err != nil {
				t.Errorf("Generate: %v", err)
				return
			}
			if out != "a" && out != "b" {
				t.Errorf("out = %q, want a or b", out)
			}
		}()
	}
	wg.Wait()
}
