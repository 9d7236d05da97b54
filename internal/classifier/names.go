package classifier

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

const (
	defaultNameCacheTTL = 24 * time.Hour
	nameLookupTimeout   = 2 * time.Second
)

// NameLookup resolves the common name of a species.
type NameLookup interface {
	CommonName(ctx context.Context, scientific string) (string, error)
}

type birdName struct {
	ScientificName string `gorm:"column:scientific_name;primaryKey"`
	CommonName     string `gorm:"column:common_name"`
}

func (birdName) TableName() string { return "birdnames" }

// BirdNamesDB looks up common names in a read-only SQLite database with a
// birdnames(scientific_name, common_name) table.
type BirdNamesDB struct {
	db *gorm.DB
}

// OpenBirdNames opens the names database at path.
func OpenBirdNames(path string) (*BirdNamesDB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryNotFound).
			Context("path", path).
			Build()
	}

	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger().Module("birdnames"), 200*time.Millisecond),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}
	return &BirdNamesDB{db: db}, nil
}

// CommonName returns the common name for scientific, or a not-found error.
func (b *BirdNamesDB) CommonName(ctx context.Context, scientific string) (string, error) {
	var row birdName
	err := b.db.WithContext(ctx).Where("scientific_name = ?", scientific).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Newf("no common name for %s", scientific).
			Component("classifier").
			Category(errors.CategoryNotFound).
			Build()
	}
	if err != nil {
		return "", errors.New(err).
			Component("classifier").
			Category(errors.CategoryDatabase).
			Context("scientific_name", scientific).
			Build()
	}
	return row.CommonName, nil
}

// Close releases the database handle.
func (b *BirdNamesDB) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// nameResolver resolves common names from the label file, then the cache,
// then the lookup. Every failure resolves to the scientific name.
type nameResolver struct {
	labels *Labels
	lookup NameLookup
	cache  *cache.Cache
}

func newNameResolver(labels *Labels, lookup NameLookup, ttl time.Duration) *nameResolver {
	if ttl <= 0 {
		ttl = defaultNameCacheTTL
	}
	return &nameResolver{
		labels: labels,
		lookup: lookup,
		cache:  cache.New(ttl, ttl*2),
	}
}

func (r *nameResolver) resolve(scientific string) string {
	if name, ok := r.labels.Common(scientific); ok {
		return name
	}
	if cached, ok := r.cache.Get(scientific); ok {
		return cached.(string)
	}
	if r.lookup == nil {
		return scientific
	}

	ctx, cancel := context.WithTimeout(context.Background(), nameLookupTimeout)
	defer cancel()

	name, err := r.lookup.CommonName(ctx, scientific)
	if err != nil || strings.TrimSpace(name) == "" {
		if err != nil && !errors.IsNotFound(err) {
			GetLogger().Warn("common name lookup failed",
				logger.String("scientific_name", scientific),
				logger.Error(err))
		}
		name = scientific
	} else {
		name = normalizeCommonName(name)
	}
	r.cache.Set(scientific, name, cache.DefaultExpiration)
	return name
}

// normalizeCommonName title-cases names stored entirely in lower case.
func normalizeCommonName(name string) string {
	name = strings.TrimSpace(name)
	if name != strings.ToLower(name) {
		return name
	}
	return cases.Title(language.English).String(name)
}
