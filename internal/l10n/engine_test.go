package l10n

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/site"
	"github.com/olegiv/ocms-l10n/internal/testutil"
	"github.com/olegiv/ocms-l10n/internal/testutil/fixture"
)

const de = int64(1)

type env struct {
	st     record.Store
	reg    *schema.Registry
	engine *Engine
}

// forEachStore runs fn against an engine over a SQL store and over a
// memory store.
func forEachStore(t *testing.T, fn func(t *testing.T, e env)) {
	t.Helper()
	reg := schema.Default()
	logger := testutil.TestLogger()

	t.Run("sql", func(t *testing.T) {
		db, cleanup := testutil.TestDB(t)
		defer cleanup()
		st := record.NewSQLStore(db, reg, logger)
		fn(t, env{st: st, reg: reg, engine: NewEngine(st, reg, nil, site.Default(), logger)})
	})
	t.Run("memory", func(t *testing.T) {
		st := record.NewMemoryStore(reg, logger)
		fn(t, env{st: st, reg: reg, engine: NewEngine(st, reg, nil, site.Default(), logger)})
	})
}

func (e env) get(t *testing.T, table string, uid int64) *model.Record {
	t.Helper()
	rec, err := e.st.Get(context.Background(), table, uid)
	require.NoError(t, err)
	return rec
}

// translation returns the only translation of table:uid into de.
func (e env) translation(t *testing.T, table string, uid int64) *model.Record {
	t.Helper()
	locUID, found, err := e.st.FindLocalization(context.Background(), table, uid, de)
	require.NoError(t, err)
	require.True(t, found, "%s:%d has no translation", table, uid)
	rec := e.get(t, table, locUID)
	assert.Equal(t, de, rec.LanguageID)
	assert.Equal(t, uid, rec.L10nParent)
	return rec
}

func (e env) assertUntranslated(t *testing.T, table string, uid int64) {
	t.Helper()
	_, found, err := e.st.FindLocalization(context.Background(), table, uid, de)
	require.NoError(t, err)
	assert.False(t, found, "%s:%d should not be translated", table, uid)
}

func TestLocalize_WallTree(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		locE, err := e.engine.Localize(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)

		contentLoc := e.translation(t, schema.TableContent, tree.Content)
		wallLoc := e.translation(t, schema.TableWall, tree.Wall)
		brickLoc := e.translation(t, schema.TableBrick, tree.Brick)

		assert.Equal(t, locE, contentLoc.UID)
		assert.Equal(t, contentLoc.UID, wallLoc.Pointer(schema.FieldWallContent))
		assert.Equal(t, wallLoc.UID, brickLoc.Pointer(schema.FieldBrickWall))
		assert.Equal(t, []int64{wallLoc.UID}, contentLoc.Collection(schema.FieldContentWalls))
		assert.Equal(t, []int64{brickLoc.UID}, wallLoc.Collection(schema.FieldWallBricks))
		assert.Equal(t, "Brick", brickLoc.Field("title"))

		// Originals are untouched.
		wall := e.get(t, schema.TableWall, tree.Wall)
		assert.Equal(t, tree.Content, wall.Pointer(schema.FieldWallContent))
		assert.Equal(t, []int64{tree.Brick}, wall.Collection(schema.FieldWallBricks))
	})
}

func TestLocalize_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		first, err := e.engine.LocalizeDetailed(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)
		assert.Equal(t, tree.Keys(), first.Created)

		second, err := e.engine.LocalizeDetailed(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)
		assert.Equal(t, first.UID, second.UID)
		assert.Empty(t, second.Created)
		assert.Empty(t, second.Updated)
		assert.Equal(t, first.Translations, second.Translations)

		locs, err := e.st.ListByPID(ctx, schema.TableBrick, tree.Page, de)
		require.NoError(t, err)
		assert.Len(t, locs, 1)
	})
}

func TestLocalize_PreservesOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		var extra []int64
		for _, title := range []string{"Second", "Third", "Fourth"} {
			extra = append(extra, fixture.Insert(t, e.st, &model.Record{
				Table:  schema.TableBrick,
				PID:    tree.Page,
				Fields: map[string]string{"title": title},
			}))
		}
		// Reverse order of insertion.
		fixture.Link(t, e.st, e.reg, schema.TableWall, tree.Wall, schema.FieldWallBricks, extra[2], extra[0], extra[1])

		_, err := e.engine.Localize(ctx, schema.TableWall, tree.Wall, de)
		require.NoError(t, err)

		wall := e.get(t, schema.TableWall, tree.Wall)
		wallLoc := e.translation(t, schema.TableWall, tree.Wall)
		require.Len(t, wallLoc.Collection(schema.FieldWallBricks), 4)
		for i, brick := range wall.Collection(schema.FieldWallBricks) {
			loc := e.translation(t, schema.TableBrick, brick)
			assert.Equal(t, loc.UID, wallLoc.Collection(schema.FieldWallBricks)[i], "position %d", i)
			assert.Equal(t, wallLoc.UID, loc.Pointer(schema.FieldBrickWall))
		}
	})
}

func TestLocalize_Cycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		page := fixture.Page(t, e.st, 0, "Home")
		a := fixture.Insert(t, e.st, &model.Record{Table: schema.TableContent, PID: page,
			Fields: map[string]string{"CType": schema.TypeContainerParent}})
		b := fixture.Insert(t, e.st, &model.Record{Table: schema.TableContent, PID: page,
			Fields: map[string]string{"CType": schema.TypeContainerChild}})
		fixture.Link(t, e.st, e.reg, schema.TableContent, a, schema.FieldContainerChildren, b)
		fixture.Link(t, e.st, e.reg, schema.TableContent, b, schema.FieldContainerChildren, a)

		_, err := e.engine.Localize(ctx, schema.TableContent, a, de)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCycle))

		var cycle *CycleError
		require.True(t, errors.As(err, &cycle))
		assert.Equal(t, []model.Key{
			{Table: schema.TableContent, UID: a},
			{Table: schema.TableContent, UID: b},
			{Table: schema.TableContent, UID: a},
		}, cycle.Path)

		e.assertUntranslated(t, schema.TableContent, a)
		e.assertUntranslated(t, schema.TableContent, b)
	})
}

func TestLocalize_LeafDoesNotLocalizeAncestors(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		out, err := e.engine.LocalizeDetailed(ctx, schema.TableBrick, tree.Brick, de)
		require.NoError(t, err)
		assert.Equal(t, []model.Key{{Table: schema.TableBrick, UID: tree.Brick}}, out.Created)

		brickLoc := e.translation(t, schema.TableBrick, tree.Brick)
		assert.Equal(t, tree.Wall, brickLoc.Pointer(schema.FieldBrickWall))
		e.assertUntranslated(t, schema.TableWall, tree.Wall)
		e.assertUntranslated(t, schema.TableContent, tree.Content)
	})
}

func TestLocalize_BrickThenWall(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		_, err := e.engine.Localize(ctx, schema.TableBrick, tree.Brick, de)
		require.NoError(t, err)
		_, err = e.engine.Localize(ctx, schema.TableWall, tree.Wall, de)
		require.NoError(t, err)

		wallLoc := e.translation(t, schema.TableWall, tree.Wall)
		brickLoc := e.translation(t, schema.TableBrick, tree.Brick)
		assert.Equal(t, wallLoc.UID, brickLoc.Pointer(schema.FieldBrickWall))
		assert.Equal(t, []int64{brickLoc.UID}, wallLoc.Collection(schema.FieldWallBricks))
		// The content element is still untranslated.
		assert.Equal(t, tree.Content, wallLoc.Pointer(schema.FieldWallContent))

		_, err = e.engine.Localize(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)
		contentLoc := e.translation(t, schema.TableContent, tree.Content)
		wallLoc = e.translation(t, schema.TableWall, tree.Wall)
		assert.Equal(t, contentLoc.UID, wallLoc.Pointer(schema.FieldWallContent))
		assert.Equal(t, []int64{wallLoc.UID}, contentLoc.Collection(schema.FieldContentWalls))
	})
}

func TestLocalize_ChildAddedAfterParentTranslation(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		_, err := e.engine.Localize(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)

		late := fixture.Insert(t, e.st, &model.Record{Table: schema.TableBrick, PID: tree.Page,
			Fields: map[string]string{"title": "Late"}})
		fixture.Link(t, e.st, e.reg, schema.TableWall, tree.Wall, schema.FieldWallBricks, late)

		// Translating the leaf links it into the translated wall.
		_, err = e.engine.Localize(ctx, schema.TableBrick, late, de)
		require.NoError(t, err)

		wallLoc := e.translation(t, schema.TableWall, tree.Wall)
		brickLoc := e.translation(t, schema.TableBrick, tree.Brick)
		lateLoc := e.translation(t, schema.TableBrick, late)
		assert.Equal(t, wallLoc.UID, lateLoc.Pointer(schema.FieldBrickWall))
		assert.Equal(t, []int64{brickLoc.UID, lateLoc.UID}, wallLoc.Collection(schema.FieldWallBricks))
	})
}

func TestLocalize_RelocalizeDescendsIntoTranslatedRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		_, err := e.engine.Localize(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)

		late := fixture.Insert(t, e.st, &model.Record{Table: schema.TableBrick, PID: tree.Page,
			Fields: map[string]string{"title": "Late"}})
		fixture.Link(t, e.st, e.reg, schema.TableWall, tree.Wall, schema.FieldWallBricks, late)

		out, err := e.engine.LocalizeDetailed(ctx, schema.TableContent, tree.Content, de)
		require.NoError(t, err)
		assert.Equal(t, []model.Key{{Table: schema.TableBrick, UID: late}}, out.Created)
		assert.Equal(t, []model.Key{{Table: schema.TableWall, UID: tree.Wall}, {Table: schema.TableBrick, UID: late}}, out.Updated)

		wallLoc := e.translation(t, schema.TableWall, tree.Wall)
		lateLoc := e.translation(t, schema.TableBrick, late)
		assert.Contains(t, wallLoc.Collection(schema.FieldWallBricks), lateLoc.UID)
		assert.Equal(t, wallLoc.UID, lateLoc.Pointer(schema.FieldBrickWall))
	})
}

func TestLocalize_Cascaded(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		c := fixture.BuildCascaded(t, e.st, e.reg)

		out, err := e.engine.LocalizeDetailed(ctx, schema.TableContent, c.ContainerParent, de)
		require.NoError(t, err)
		assert.Equal(t, c.Keys(), out.Created)

		parentLoc := e.translation(t, schema.TableContent, c.ContainerParent)
		childLoc := e.translation(t, schema.TableContent, c.ContainerChild)
		contentLoc := e.translation(t, schema.TableContent, c.Content)
		wallLoc := e.translation(t, schema.TableWall, c.Wall)
		upperLoc := e.translation(t, schema.TableBrick, c.UpperBrick)
		lowerLoc := e.translation(t, schema.TableBrick, c.LowerBrick)

		assert.Equal(t, parentLoc.UID, childLoc.Pointer(schema.FieldContainerParent))
		assert.Equal(t, childLoc.UID, contentLoc.Pointer(schema.FieldContainerParent))
		assert.Equal(t, contentLoc.UID, wallLoc.Pointer(schema.FieldWallContent))
		assert.Equal(t, contentLoc.UID, upperLoc.Pointer(schema.FieldBrickContent))
		assert.Equal(t, wallLoc.UID, lowerLoc.Pointer(schema.FieldBrickWall))
		assert.Zero(t, parentLoc.Pointer(schema.FieldContainerParent))
	})
}

func TestLocalize_Errors(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		_, err := e.engine.Localize(ctx, schema.TableWall, tree.Wall, 0)
		assert.True(t, errors.Is(err, record.ErrValidation))

		_, err = e.engine.Localize(ctx, schema.TableWall, tree.Wall, 7)
		assert.True(t, errors.Is(err, site.ErrUnknownLanguage))

		_, err = e.engine.Localize(ctx, "tx_news", 1, de)
		assert.True(t, errors.Is(err, schema.ErrUnknownTable))

		_, err = e.engine.Localize(ctx, schema.TableWall, 4242, de)
		assert.True(t, errors.Is(err, record.ErrNotFound))

		loc, err := e.engine.Localize(ctx, schema.TableWall, tree.Wall, de)
		require.NoError(t, err)
		_, err = e.engine.Localize(ctx, schema.TableWall, loc, de)
		assert.True(t, errors.Is(err, record.ErrValidation))
	})
}

// failingStore fails every update of one table inside transactions.
type failingStore struct {
	record.Store
	table string
}

var errInjected = errors.New("injected failure")

func (f failingStore) Update(ctx context.Context, table string, uid int64, patch model.Patch) error {
	if table == f.table {
		return errInjected
	}
	return f.Store.Update(ctx, table, uid, patch)
}

func (f failingStore) InTx(ctx context.Context, fn func(tx record.Store) error) error {
	return f.Store.InTx(ctx, func(tx record.Store) error {
		return fn(failingStore{Store: tx, table: f.table})
	})
}

func TestLocalize_RollsBackOnFailure(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		engine := NewEngine(failingStore{Store: e.st, table: schema.TableBrick}, e.reg, nil, nil, testutil.TestLogger())
		_, err := engine.Localize(ctx, schema.TableContent, tree.Content, de)
		assert.ErrorIs(t, err, errInjected)

		for _, k := range tree.Keys() {
			e.assertUntranslated(t, k.Table, k.UID)
		}
	})
}

func TestLocalize_Concurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, e env) {
		ctx := context.Background()
		tree := fixture.BuildWallTree(t, e.st, e.reg)

		const workers = 8
		uids := make([]int64, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Half the workers start from the leaf.
				if i%2 == 1 {
					_, errs[i] = e.engine.Localize(ctx, schema.TableBrick, tree.Brick, de)
					if errs[i] != nil {
						return
					}
				}
				uids[i], errs[i] = e.engine.Localize(ctx, schema.TableContent, tree.Content, de)
			}()
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			assert.Equal(t, uids[0], uids[i])
		}
		for _, k := range tree.Keys() {
			e.translation(t, k.Table, k.UID)
		}
		wallLoc := e.translation(t, schema.TableWall, tree.Wall)
		brickLoc := e.translation(t, schema.TableBrick, tree.Brick)
		assert.Equal(t, wallLoc.UID, brickLoc.Pointer(schema.FieldBrickWall))
	})
}
