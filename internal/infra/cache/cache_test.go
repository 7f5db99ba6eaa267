package cache

import (
	"testing"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(ttl time.Duration) (*InMemory[*domain.RemoteUser], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New[*domain.RemoteUser](ttl)
	c.now = clock.now
	return c, clock
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Close()

	c.Set("token-1", &domain.RemoteUser{ID: "u1", Email: "ana@finanzo.app"})

	u, ok := c.Get("token-1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if u.ID != "u1" {
		t.Errorf("expected user u1, got %q", u.ID)
	}
	if _, ok := c.Get("token-2"); ok {
		t.Fatal("expected miss for unknown token")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	defer c.Close()

	c.Set("token-1", &domain.RemoteUser{ID: "u1"})
	clock.t = clock.t.Add(61 * time.Second)

	if _, ok := c.Get("token-1"); ok {
		t.Fatal("expected entry to be expired")
	}

	c.purgeExpired()
	if c.Len() != 0 {
		t.Errorf("expected sweep to drop the entry, %d left", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Close()

	c.Set("token-1", &domain.RemoteUser{ID: "u1"})
	c.Delete("token-1")

	if _, ok := c.Get("token-1"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Close()
	c.Close()

	c.Set("token-1", &domain.RemoteUser{ID: "u1"})
	if _, ok := c.Get("token-1"); !ok {
		t.Fatal("cache must stay usable after Close")
	}
}
