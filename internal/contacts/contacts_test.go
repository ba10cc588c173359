package contacts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "contacts.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	err := s.Upsert(ctx, Details{
		ContactID:        "contact-1",
		CallerTranscript: "there is smoke",
		RecommendedSOP:   "Fire, Arson",
		Jurisdiction:     "Undetermined",
		UpdatedAt:        at,
	})
	require.NoError(t, err)

	d, err := s.Get(ctx, "contact-1")
	require.NoError(t, err)
	assert.Equal(t, "there is smoke", d.CallerTranscript)
	assert.Equal(t, "Fire, Arson", d.RecommendedSOP)
	assert.Equal(t, "Undetermined", d.Jurisdiction)
	assert.WithinDuration(t, at, d.UpdatedAt, time.Millisecond)
}

func TestUpsert_OverwritesExisting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, Details{ContactID: "c", CallerTranscript: "first", Jurisdiction: "Undetermined"}))
	require.NoError(t, s.Upsert(ctx, Details{ContactID: "c", CallerTranscript: "second", Jurisdiction: "Surrey"}))

	d, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "second", d.CallerTranscript)
	assert.Equal(t, "Surrey", d.Jurisdiction)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nobody")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contacts.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, Details{ContactID: "c", RecommendedSOP: "Theft"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	d, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "Theft", d.RecommendedSOP)
}
