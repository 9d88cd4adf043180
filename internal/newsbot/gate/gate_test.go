package gate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

type fakeStore struct {
	mu        sync.Mutex
	dup       bool
	findErr   error
	insertErr error
	inserted  bool
	finds     int
	inserts   int
	last      news.Item
}

func (f *fakeStore) FindDuplicate(context.Context, string, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	return f.dup, f.findErr
}

func (f *fakeStore) Insert(_ context.Context, item *news.Item) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	f.last = *item
	return f.inserted, f.insertErr
}

func TestOutcomeString(t *testing.T) {
	want := []string{"inserted", "duplicate", "blocked", "store_error"}
	for i, o := range Outcomes() {
		assert.Equal(t, want[i], o.String())
	}
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func TestPolicy(t *testing.T) {
	p := NewPolicy("Perú21", "  ", "Diario Sin Fronteras")
	assert.True(t, p.Blocked("peru21"))
	assert.True(t, p.Blocked("  PERÚ21 "))
	assert.True(t, p.Blocked("diario sin fronteras"))
	assert.False(t, p.Blocked("RPP Noticias"))
	assert.ElementsMatch(t, []string{"Perú21", "Diario Sin Fronteras"}, p.Names())

	var nilPolicy *Policy
	assert.False(t, nilPolicy.Blocked("anything"))
	assert.Empty(t, nilPolicy.Names())
}

func TestAccept(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name        string
		store       *fakeStore
		source      string
		want        Outcome
		wantErr     bool
		wantFinds   int
		wantInserts int
	}{
		{"blocked before store", &fakeStore{}, "Perú21", Blocked, false, 0, 0},
		{"duplicate lookup", &fakeStore{dup: true}, "RPP Noticias", Duplicate, false, 1, 0},
		{"inserted", &fakeStore{inserted: true}, "RPP Noticias", Inserted, false, 1, 1},
		{"conflict clause", &fakeStore{inserted: false}, "RPP Noticias", Duplicate, false, 1, 1},
		{"unique violation", &fakeStore{insertErr: errors.New("UNIQUE constraint failed: noticias.link")}, "RPP Noticias", Duplicate, false, 1, 1},
		{"lookup failure", &fakeStore{findErr: errors.New("connection refused")}, "RPP Noticias", StoreError, true, 1, 0},
		{"insert failure", &fakeStore{insertErr: errors.New("disk full")}, "RPP Noticias", StoreError, true, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(tc.store, NewPolicy("peru21"), nil).WithClock(func() time.Time { return now })
			item := &news.Item{Title: "t", Link: "https://n.pe/1", Source: tc.source}
			got, err := g.Accept(context.Background(), item)
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantFinds, tc.store.finds)
			assert.Equal(t, tc.wantInserts, tc.store.inserts)
			if tc.wantInserts > 0 {
				assert.Equal(t, now, tc.store.last.ScrapedAt)
			}
		})
	}
}

// Two gates racing on the same link against a real store must leave one row.
func TestAccept_ConcurrentSameLink(t *testing.T) {
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: filepath.Join(t.TempDir(), "gate.db")}, nil)
	require.NoError(t, err)
	st := store.New(db)
	t.Cleanup(func() { st.Close() })
	_, err = st.Migrate(context.Background())
	require.NoError(t, err)

	const workers = 8
	outcomes := make([]Outcome, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := New(st, nil, nil)
			item := &news.Item{Title: "Sismo en Ica", Link: "https://n.pe/nota/1", Source: "RPP Noticias"}
			out, err := g.Accept(context.Background(), item)
			assert.NoError(t, err)
			outcomes[i] = out
		}()
	}
	wg.Wait()

	inserted := 0
	for _, o := range outcomes {
		if o == Inserted {
			inserted++
		} else {
			assert.Equal(t, Duplicate, o)
		}
	}
	assert.Equal(t, 1, inserted)

	n, err := st.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
