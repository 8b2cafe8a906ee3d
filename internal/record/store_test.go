package record

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/testutil"
)

// forEachStore runs fn against a fresh SQL store and a fresh memory store.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	reg := schema.Default()

	t.Run("sql", func(t *testing.T) {
		db, cleanup := testutil.TestDB(t)
		defer cleanup()
		fn(t, NewSQLStore(db, reg, testutil.TestLogger()))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(reg, testutil.TestLogger()))
	})
}

func insert(t *testing.T, s Store, rec *model.Record) int64 {
	t.Helper()
	uid, err := s.Insert(context.Background(), rec)
	require.NoError(t, err)
	return uid
}

// wallTree inserts content element -> wall -> brick and returns their uids.
func wallTree(t *testing.T, s Store) (content, wall, brick int64) {
	t.Helper()
	ctx := context.Background()

	content = insert(t, s, &model.Record{
		Table:  schema.TableContent,
		PID:    1,
		Fields: map[string]string{"CType": schema.TypeWallCollection, "header": "Element"},
	})
	wall = insert(t, s, &model.Record{
		Table:    schema.TableWall,
		PID:      1,
		Fields:   map[string]string{"title": "Wall"},
		Pointers: map[string]int64{schema.FieldWallContent: content},
	})
	brick = insert(t, s, &model.Record{
		Table:    schema.TableBrick,
		PID:      1,
		Fields:   map[string]string{"title": "Brick"},
		Pointers: map[string]int64{schema.FieldBrickWall: wall},
	})
	require.NoError(t, s.Update(ctx, schema.TableContent, content, model.Patch{
		Collections: map[string][]int64{schema.FieldContentWalls: {wall}},
	}))
	require.NoError(t, s.Update(ctx, schema.TableWall, wall, model.Patch{
		Collections: map[string][]int64{schema.FieldWallBricks: {brick}},
	}))
	return content, wall, brick
}

func TestStore_InsertGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		content, wall, brick := wallTree(t, s)

		assert.NotEqual(t, content, wall)
		assert.NotEqual(t, wall, brick)

		rec, err := s.Get(ctx, schema.TableWall, wall)
		require.NoError(t, err)
		assert.Equal(t, "Wall", rec.Field("title"))
		assert.Equal(t, content, rec.Pointer(schema.FieldWallContent))
		assert.Equal(t, []int64{brick}, rec.Collection(schema.FieldWallBricks))
		assert.Equal(t, int64(2), rec.Version)
		assert.True(t, rec.IsDefaultLanguage())
	})
}

func TestStore_GetErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Get(ctx, schema.TableWall, 999)
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = s.Get(ctx, "tx_news", 1)
		assert.True(t, errors.Is(err, schema.ErrUnknownTable))
	})
}

func TestStore_InsertValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Insert(ctx, &model.Record{
			Table:    schema.TableBrick,
			Pointers: map[string]int64{schema.FieldBrickWall: 42},
		})
		assert.True(t, errors.Is(err, ErrValidation), "dangling pointer: %v", err)

		_, err = s.Insert(ctx, &model.Record{
			Table:    schema.TableBrick,
			Pointers: map[string]int64{"relation_brick": 1},
		})
		assert.True(t, errors.Is(err, ErrValidation), "collection used as pointer: %v", err)

		_, err = s.Insert(ctx, &model.Record{Table: "tx_news"})
		assert.True(t, errors.Is(err, schema.ErrUnknownTable))

		long := make([]rune, 256)
		for i := range long {
			long[i] = 'x'
		}
		_, err = s.Insert(ctx, &model.Record{
			Table:  schema.TableWall,
			Fields: map[string]string{"title": string(long)},
		})
		assert.True(t, errors.Is(err, ErrValidation), "title too long: %v", err)

		_, err = s.Insert(ctx, &model.Record{Table: schema.TableWall, LanguageID: 1, L10nParent: 77})
		assert.True(t, errors.Is(err, ErrValidation), "missing l10n parent: %v", err)
	})
}

func TestStore_UpdateValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		content, wall, _ := wallTree(t, s)

		err := s.Update(ctx, schema.TableContent, content, model.Patch{
			Collections: map[string][]int64{schema.FieldContentWalls: {wall, wall}},
		})
		assert.True(t, errors.Is(err, ErrValidation))

		err = s.Update(ctx, schema.TableWall, 12345, model.Patch{Fields: map[string]string{"title": "x"}})
		assert.True(t, errors.Is(err, ErrNotFound))

		rec, err := s.Get(ctx, schema.TableContent, content)
		require.NoError(t, err)
		assert.Equal(t, []int64{wall}, rec.Collection(schema.FieldContentWalls))
	})
}

func TestStore_CreateLocalizedCopy(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		content, wall, brick := wallTree(t, s)

		locUID, created, err := s.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)
		assert.True(t, created)

		loc, err := s.Get(ctx, schema.TableWall, locUID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), loc.LanguageID)
		assert.Equal(t, wall, loc.L10nParent)
		assert.Equal(t, "Wall", loc.Field("title"))
		// Relations still point at the original records.
		assert.Equal(t, content, loc.Pointer(schema.FieldWallContent))
		assert.Equal(t, []int64{brick}, loc.Collection(schema.FieldWallBricks))

		again, created, err := s.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, locUID, again)

		found, ok, err := s.FindLocalization(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, locUID, found)

		_, ok, err = s.FindLocalization(ctx, schema.TableWall, wall, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_CreateLocalizedCopyErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, wall, _ := wallTree(t, s)

		_, _, err := s.CreateLocalizedCopy(ctx, schema.TableWall, wall, 0)
		assert.True(t, errors.Is(err, ErrValidation))

		_, _, err = s.CreateLocalizedCopy(ctx, schema.TableWall, 999, 1)
		assert.True(t, errors.Is(err, ErrNotFound))

		locUID, _, err := s.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)
		_, _, err = s.CreateLocalizedCopy(ctx, schema.TableWall, locUID, 2)
		assert.True(t, errors.Is(err, ErrValidation), "translating a translation: %v", err)
	})
}

func TestStore_SecondLocalizationRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, wall, _ := wallTree(t, s)

		_, _, err := s.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)

		_, err = s.Insert(ctx, &model.Record{Table: schema.TableWall, LanguageID: 1, L10nParent: wall})
		assert.True(t, errors.Is(err, ErrConsistency))
	})
}

func TestStore_ConcurrentLocalizedCopy(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, wall, _ := wallTree(t, s)

		const workers = 8
		uids := make([]int64, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.InTx(ctx, func(tx Store) error {
					uid, _, err := tx.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1)
					uids[i] = uid
					return err
				})
			}()
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			assert.Equal(t, uids[0], uids[i])
		}
	})
}

func TestStore_InTxRollback(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, wall, _ := wallTree(t, s)

		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx Store) error {
			if _, _, err := tx.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1); err != nil {
				return err
			}
			if err := tx.Update(ctx, schema.TableWall, wall, model.Patch{Fields: map[string]string{"title": "Changed"}}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, found, err := s.FindLocalization(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)
		assert.False(t, found)

		rec, err := s.Get(ctx, schema.TableWall, wall)
		require.NoError(t, err)
		assert.Equal(t, "Wall", rec.Field("title"))
	})
}

func TestStore_ListByPID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, wall, _ := wallTree(t, s)
		insert(t, s, &model.Record{Table: schema.TableWall, PID: 2, Fields: map[string]string{"title": "Other"}})
		_, _, err := s.CreateLocalizedCopy(ctx, schema.TableWall, wall, 1)
		require.NoError(t, err)

		walls, err := s.ListByPID(ctx, schema.TableWall, 1, 0)
		require.NoError(t, err)
		require.Len(t, walls, 1)
		assert.Equal(t, wall, walls[0].UID)

		locs, err := s.ListByPID(ctx, schema.TableWall, 1, 1)
		require.NoError(t, err)
		require.Len(t, locs, 1)
		assert.Equal(t, wall, locs[0].L10nParent)
	})
}
