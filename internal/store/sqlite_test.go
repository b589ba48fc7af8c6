package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/manolo/internal/domain"
	"github.com/ashureev/manolo/internal/fieldcrypt"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "manolo.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendMessageReturnsRunningCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		n, err := s.AppendMessage(ctx, 42, "hola")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	// Other chats keep their own count.
	n, err := s.AppendMessage(ctx, 7, "adios")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.CountMessages(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMessagesInInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	want := []string{"uno dos", "tres cuatro", "cinco"}
	for _, text := range want {
		_, err := s.AppendMessage(ctx, 1, text)
		require.NoError(t, err)
	}

	got, err := s.Messages(ctx, 1)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.Messages(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConcurrentAppendsProduceDistinctCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	const writers = 20
	counts := make(chan int, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.AppendMessage(ctx, 99, "concurrent")
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			counts <- n
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for n := range counts {
		assert.False(t, seen[n], "count %d returned twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, writers)
}

func TestDeleteMessagesResetsCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 4; i++ {
		_, err := s.AppendMessage(ctx, 5, "algo")
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteMessages(ctx, 5))

	count, err := s.CountMessages(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := s.AppendMessage(ctx, 5, "otra vez")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStickerObservationsAndRandomPick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordSticker(ctx, 10, "A"))
	}
	require.NoError(t, s.RecordSticker(ctx, 10, "B"))
	require.NoError(t, s.RecordSticker(ctx, 11, "C"))

	stickers, err := s.Stickers(ctx, 10)
	require.NoError(t, err)
	want := []domain.Sticker{
		{ChatID: 10, FileID: "A", Count: 3},
		{ChatID: 10, FileID: "B", Count: 1},
	}
	if diff := cmp.Diff(want, stickers); diff != "" {
		t.Fatalf("stickers mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 50; i++ {
		id, ok, err := s.RandomSticker(ctx, 10)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Contains(t, []string{"A", "B"}, id)
	}

	_, ok, err := s.RandomSticker(ctx, 12)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteStickers(ctx, 10))
	_, ok, err = s.RandomSticker(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	// Chat 11 is untouched.
	id, ok, err := s.RandomSticker(ctx, 11)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "C", id)
}

func TestFrequencyDefaultAndUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Frequency(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFrequency, n)

	require.NoError(t, s.SetFrequency(ctx, 3, 5))
	require.NoError(t, s.SetFrequency(ctx, 3, 7))
	n, err = s.Frequency(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	err = s.SetFrequency(ctx, 3, -1)
	assert.True(t, domain.IsValidation(err))
	n, err = s.Frequency(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMessagesAreSealedAtRest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, err := fieldcrypt.New("test-key")
	require.NoError(t, err)
	s := newTestStore(t, WithCipher(c))

	_, err = s.AppendMessage(ctx, 1, "mensaje secreto")
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT text FROM messages WHERE chat_id = 1`).Scan(&raw))
	assert.NotContains(t, raw, "secreto")

	got, err := s.Messages(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"mensaje secreto"}, got)
}

func TestRebindPostgres(t *testing.T) {
	s := &SQLStore{dialect: dialectPostgres}
	got := s.rebind(`INSERT INTO t (a, b) VALUES (?, ?) WHERE c = ?`)
	assert.Equal(t, `INSERT INTO t (a, b) VALUES ($1, $2) WHERE c = $3`, got)

	s.dialect = dialectSQLite
	assert.Equal(t, `SELECT ?`, s.rebind(`SELECT ?`))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "", "")
	assert.Error(t, err)
}
