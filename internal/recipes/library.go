package recipes

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

// Ingredient is one pour step. Steps dispense in file order.
type Ingredient struct {
	Pump     int     `toml:"pump"`
	Name     string  `toml:"name"`
	AmountOz float64 `toml:"amount_oz"`
}

// Recipe is one drink definition loaded from a TOML file.
type Recipe struct {
	Name        string       `toml:"name"`
	Tag         string       `toml:"tag"`
	Ingredients []Ingredient `toml:"ingredients"`

	// Source is the file the recipe was loaded from.
	Source string `toml:"-"`
}

// TotalOunces sums the recipe's ingredient volumes.
func (r Recipe) TotalOunces() float64 {
	var total float64
	for _, ing := range r.Ingredients {
		total += ing.AmountOz
	}
	return total
}

// Bounds holds the validation limits recipes are checked against at load
// time. They mirror the actuator's dispense limits so a listed recipe is
// guaranteed pourable.
type Bounds struct {
	ChannelCount    int
	MinVolumeOunces float64
	MaxVolumeOunces float64
}

// LibraryOptions configures a Library.
type LibraryOptions struct {
	// Dir is the recipe file directory.
	Dir string
	// DefaultTag, when set, is resolved in place of an unknown tag.
	DefaultTag string
	// CacheTTL bounds how stale the in-memory set may get before the
	// directory is rescanned.
	CacheTTL time.Duration
	// Bounds are the per-ingredient validation limits.
	Bounds Bounds
}

// Library resolves tags to recipes.
type Library struct {
	opts   LibraryOptions
	logger *slog.Logger
	titler cases.Caser

	mu       sync.Mutex
	byTag    map[string]Recipe
	loadedAt time.Time
}

// NewLibrary builds a Library over the given directory. The first load is
// lazy; Resolve and List trigger it.
func NewLibrary(opts LibraryOptions, logger *slog.Logger) *Library {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Library{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "recipes"),
		titler: cases.Title(language.English),
	}
}

// Resolve returns the recipe bound to tag, falling back to the configured
// default tag when the tag is unknown. Unknown tags with no default, and
// recipes that failed validation at load, resolve to ErrRecipeNotFound.
func (l *Library) Resolve(tag string) (Recipe, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureFresh(); err != nil {
		return Recipe{}, err
	}

	key := normalizeTag(tag)
	if recipe, ok := l.byTag[key]; ok {
		return recipe, nil
	}
	if l.opts.DefaultTag != "" {
		if recipe, ok := l.byTag[normalizeTag(l.opts.DefaultTag)]; ok {
			l.logger.Info("unknown tag, using default recipe",
				logging.String(logging.FieldTag, tag),
				logging.String("recipe", recipe.Name))
			return recipe, nil
		}
	}
	return Recipe{}, faults.Wrap(faults.ErrRecipeNotFound, "recipes", "resolve",
		fmt.Sprintf("no recipe for tag %s", tag), nil)
}

// List returns all loaded recipes sorted by display name.
func (l *Library) List() ([]Recipe, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureFresh(); err != nil {
		return nil, err
	}
	out := make([]Recipe, 0, len(l.byTag))
	for _, recipe := range l.byTag {
		out = append(out, recipe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Reload rescans the directory immediately and reports how many recipes
// loaded.
func (l *Library) Reload() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(); err != nil {
		return 0, err
	}
	return len(l.byTag), nil
}

func (l *Library) ensureFresh() error {
	if l.byTag != nil && time.Since(l.loadedAt) < l.opts.CacheTTL {
		return nil
	}
	return l.load()
}

func (l *Library) load() error {
	entries, err := os.ReadDir(l.opts.Dir)
	if err != nil {
		return faults.Wrap(faults.ErrConfiguration, "recipes", "load",
			fmt.Sprintf("reading recipe directory %s", l.opts.Dir), err)
	}

	byTag := make(map[string]Recipe)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(l.opts.Dir, entry.Name())
		recipe, err := l.loadFile(path)
		if err != nil {
			// A broken file disables that one recipe, not the library.
			logging.WarnWithContext(l.logger, "skipping invalid recipe file", "recipe_invalid",
				logging.String("file", entry.Name()),
				logging.Error(err))
			continue
		}
		key := normalizeTag(recipe.Tag)
		if prior, dup := byTag[key]; dup {
			logging.WarnWithContext(l.logger, "duplicate tag binding, keeping first", "recipe_duplicate_tag",
				logging.String(logging.FieldTag, recipe.Tag),
				logging.String("kept", prior.Source),
				logging.String("skipped", entry.Name()))
			continue
		}
		byTag[key] = recipe
	}

	l.byTag = byTag
	l.loadedAt = time.Now()
	l.logger.Info("recipe library loaded", logging.Int("recipes", len(byTag)))
	return nil
}

func (l *Library) loadFile(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, err
	}
	var recipe Recipe
	if err := toml.Unmarshal(data, &recipe); err != nil {
		return Recipe{}, err
	}
	recipe.Source = filepath.Base(path)
	if recipe.Name == "" {
		base := strings.TrimSuffix(recipe.Source, ".toml")
		recipe.Name = l.titler.String(strings.ReplaceAll(base, "_", " "))
	}
	if err := l.validate(recipe); err != nil {
		return Recipe{}, err
	}
	return recipe, nil
}

// validate fails closed: any invalid ingredient rejects the whole recipe.
func (l *Library) validate(recipe Recipe) error {
	if recipe.Tag == "" {
		return fmt.Errorf("missing tag")
	}
	if len(recipe.Ingredients) == 0 {
		return fmt.Errorf("no ingredients")
	}
	b := l.opts.Bounds
	for i, ing := range recipe.Ingredients {
		if b.ChannelCount > 0 && (ing.Pump < 0 || ing.Pump >= b.ChannelCount) {
			return fmt.Errorf("ingredient %d: pump %d outside [0, %d)", i, ing.Pump, b.ChannelCount)
		}
		if ing.AmountOz <= 0 {
			return fmt.Errorf("ingredient %d: non-positive amount %v", i, ing.AmountOz)
		}
		if b.MinVolumeOunces > 0 && ing.AmountOz < b.MinVolumeOunces {
			return fmt.Errorf("ingredient %d: amount %v below minimum %v", i, ing.AmountOz, b.MinVolumeOunces)
		}
		if b.MaxVolumeOunces > 0 && ing.AmountOz > b.MaxVolumeOunces {
			return fmt.Errorf("ingredient %d: amount %v above maximum %v", i, ing.AmountOz, b.MaxVolumeOunces)
		}
	}
	return nil
}

func normalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}
