package classifier

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ando01/BirdView/internal/errors"
)

type countingLookup struct {
	names map[string]string
	err   error
	calls atomic.Int32
}

func (l *countingLookup) CommonName(_ context.Context, scientific string) (string, error) {
	l.calls.Add(1)
	if l.err != nil {
		return "", l.err
	}
	name, ok := l.names[scientific]
	if !ok {
		return "", errors.Newf("no common name for %s", scientific).Category(errors.CategoryNotFound).Build()
	}
	return name, nil
}

func createBirdNamesDB(t *testing.T, rows map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "birdnames.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&birdName{}))
	for sci, common := range rows {
		require.NoError(t, db.Create(&birdName{ScientificName: sci, CommonName: common}).Error)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func TestBirdNamesDB(t *testing.T) {
	t.Parallel()

	path := createBirdNamesDB(t, map[string]string{"Aramus guarauna": "Limpkin"})
	names, err := OpenBirdNames(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = names.Close() })

	got, err := names.CommonName(t.Context(), "Aramus guarauna")
	require.NoError(t, err)
	assert.Equal(t, "Limpkin", got)

	_, err = names.CommonName(t.Context(), "Corvus corax")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestOpenBirdNamesMissingFile(t *testing.T) {
	t.Parallel()

	_, err := OpenBirdNames(filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestNameResolverOrder(t *testing.T) {
	t.Parallel()

	labels, err := ParseINat(strings.NewReader("Cardinalis cardinalis (Northern Cardinal)\nAramus guarauna\nCorvus corax\n"))
	require.NoError(t, err)
	lookup := &countingLookup{names: map[string]string{"Aramus guarauna": "limpkin"}}
	r := newNameResolver(labels, lookup, 0)

	assert.Equal(t, "Northern Cardinal", r.resolve("Cardinalis cardinalis"))
	assert.Zero(t, lookup.calls.Load(), "label file names skip the lookup")

	assert.Equal(t, "Limpkin", r.resolve("Aramus guarauna"))
	assert.Equal(t, "Limpkin", r.resolve("Aramus guarauna"))
	assert.EqualValues(t, 1, lookup.calls.Load(), "second resolve is served from cache")

	assert.Equal(t, "Corvus corax", r.resolve("Corvus corax"))
}

func TestNameResolverDegradesToScientific(t *testing.T) {
	t.Parallel()

	lookup := &countingLookup{err: errors.NewStd("database is locked")}
	r := newNameResolver(nil, lookup, 0)
	assert.Equal(t, "Aramus guarauna", r.resolve("Aramus guarauna"))

	assert.Equal(t, "Aramus guarauna", newNameResolver(nil, nil, 0).resolve("Aramus guarauna"))
}

func TestNormalizeCommonName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Northern Cardinal", normalizeCommonName("northern cardinal"))
	assert.Equal(t, "Black-capped Chickadee", normalizeCommonName("Black-capped Chickadee"))
	assert.Equal(t, "Limpkin", normalizeCommonName("  limpkin "))
}
