// Package engineconfig holds the tunable knobs of the storage engine: where
// the database directory lives and how many table pages the buffer pool's
// clock replacer may hold resident at once. An optional TOML file can
// override the defaults; PAGE_SIZE is accepted only as a validation echo
// since this engine never varies page size per file (see spec Non-goals).
package engineconfig

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// DefaultCacheCapacity is the clock replacer's default resident-page count.
const DefaultCacheCapacity = 128

// PageSize is the compile-time page size for every page in a database file.
// It is not configurable; see Non-goals ("variable page size per file").
const PageSize = 4096

// Config is the engine's runtime configuration.
type Config struct {
	// DataDir holds toydb.db. Created on open if missing.
	DataDir string `toml:"data_dir"`
	// CacheCapacity is the clock replacer's resident page capacity.
	CacheCapacity int `toml:"cache_capacity"`
}

// Default returns a Config with sane defaults rooted at dataDir.
func Default(dataDir string) Config {
	return Config{DataDir: dataDir, CacheCapacity: DefaultCacheCapacity}
}

// Load reads a Config from a TOML file at path, falling back to Default
// values for any field the file omits. An empty PageSize in the file is
// ignored; a non-empty one that disagrees with PageSize is rejected, since
// this engine has no facility for mixed page sizes within one file.
func Load(path string, dataDir string) (Config, error) {
	cfg := Default(dataDir)
	raw := struct {
		DataDir       string `toml:"data_dir"`
		CacheCapacity int    `toml:"cache_capacity"`
		PageSize      int    `toml:"page_size"`
	}{}
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "opening engine config")
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&raw); err != nil {
		return cfg, errors.Wrap(err, "decoding engine config")
	}
	if raw.DataDir != "" {
		cfg.DataDir = raw.DataDir
	}
	if raw.CacheCapacity > 0 {
		cfg.CacheCapacity = raw.CacheCapacity
	}
	if raw.PageSize != 0 && raw.PageSize != PageSize {
		return cfg, errors.Errorf("config page_size %d does not match compiled PAGE_SIZE %d", raw.PageSize, PageSize)
	}
	return cfg, nil
}
