package keyword

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// localeFile is the on-disk shape of a locale keyword file.
type localeFile struct {
	Language   string              `yaml:"language"`
	CopyMarker string              `yaml:"copy_marker"`
	In         []string            `yaml:"in"`
	Dates      map[string][]string `yaml:"dates"`
	Weekdays   map[string][]string `yaml:"weekdays"`
	Times      map[string][]string `yaml:"times"`
	Units      map[string][]string `yaml:"units"`
}

// Tables is the immutable set of locale tables known to the process.
type Tables struct {
	tables   map[language.Tag]*Table
	tags     []language.Tag
	matcher  language.Matcher
	fallback *Table
}

// Embedded loads the tables shipped with the binary.
func Embedded(fallback string) (*Tables, error) {
	sub, err := fs.Sub(localeFS, "locales")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embedded locales")
	}
	return Load(sub, fallback)
}

// Load reads every *.yaml file at the root of fsys. The fallback language is
// used when a lookup matches none of the loaded locales.
func Load(fsys fs.FS, fallback string) (*Tables, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list locale files")
	}
	if len(names) == 0 {
		return nil, errors.New("no locale files found")
	}
	sort.Strings(names)

	tables := make(map[language.Tag]*Table, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read locale file %s", name)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrapf(err, "failed to decode locale file %s", name)
		}
		table, err := file.build()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid locale file %s", path.Base(name))
		}
		if _, dup := tables[table.Language]; dup {
			return nil, errors.Errorf("duplicate locale %s in %s", table.Language, name)
		}
		tables[table.Language] = table
	}

	fallbackTag, err := language.Parse(fallback)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid fallback language %q", fallback)
	}
	fallbackTable, ok := tables[fallbackTag]
	if !ok {
		return nil, errors.Errorf("fallback language %s has no locale file", fallbackTag)
	}

	// The matcher treats the first supported tag as its default.
	tags := []language.Tag{fallbackTag}
	rest := make([]language.Tag, 0, len(tables)-1)
	for tag := range tables {
		if tag != fallbackTag {
			rest = append(rest, tag)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].String() < rest[j].String() })
	tags = append(tags, rest...)

	return &Tables{
		tables:   tables,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		fallback: fallbackTable,
	}, nil
}

// Lookup returns the table best matching a user or chat language code such
// as "ru", "en-GB" or "ru-RU". Unknown or empty codes get the fallback table.
func (t *Tables) Lookup(lang string) *Table {
	if lang == "" {
		return t.fallback
	}
	_, idx, conf := t.matcher.Match(language.Make(lang))
	if conf == language.No {
		return t.fallback
	}
	return t.tables[t.tags[idx]]
}

// Languages returns the loaded locales, fallback first.
func (t *Tables) Languages() []language.Tag {
	return append([]language.Tag(nil), t.tags...)
}

func (f *localeFile) build() (*Table, error) {
	tag, err := language.Parse(f.Language)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid language %q", f.Language)
	}
	if len(f.In) == 0 {
		return nil, errors.New("missing \"in\" keywords")
	}

	t := &Table{
		Language:   tag,
		CopyMarker: f.CopyMarker,
		dayOffsets: make(map[string]int),
		weekdays:   make(map[string]time.Weekday),
		timesOfDay: make(map[string]TimeOfDay),
		units:      make(map[string]Unit),
		unitWords:  make(map[Unit][]string),
	}
	if t.CopyMarker == "" {
		t.CopyMarker = "(copy)"
	}

	for _, w := range f.In {
		if w = Fold(w); w == "" {
			return nil, errors.New("empty \"in\" keyword")
		}
		t.in = append(t.in, w)
	}

	// A word may only ever resolve to one value across all date keywords.
	dateWords := make(map[string]string)
	for slot, words := range f.Dates {
		offset, ok := dateOffsetNames[slot]
		if !ok {
			return nil, errors.Errorf("unknown date keyword %q", slot)
		}
		for _, w := range words {
			if err := claim(dateWords, w, slot); err != nil {
				return nil, err
			}
			t.dayOffsets[Fold(w)] = offset
		}
	}
	for slot, words := range f.Weekdays {
		wd, ok := weekdayNames[slot]
		if !ok {
			return nil, errors.Errorf("unknown weekday %q", slot)
		}
		for _, w := range words {
			if err := claim(dateWords, w, slot); err != nil {
				return nil, err
			}
			t.weekdays[Fold(w)] = wd
		}
	}
	if len(f.Weekdays) != len(weekdayNames) {
		return nil, errors.Errorf("expected %d weekdays, got %d", len(weekdayNames), len(f.Weekdays))
	}

	timeWords := make(map[string]string)
	for slot, words := range f.Times {
		tod, ok := timeOfDayNames[slot]
		if !ok {
			return nil, errors.Errorf("unknown time of day %q", slot)
		}
		for _, w := range words {
			if err := claim(timeWords, w, slot); err != nil {
				return nil, err
			}
			t.timesOfDay[Fold(w)] = tod
		}
	}

	unitWords := make(map[string]string)
	for slot, words := range f.Units {
		unit, ok := unitNames[slot]
		if !ok {
			return nil, errors.Errorf("unknown unit %q", slot)
		}
		for _, w := range words {
			if err := claim(unitWords, w, slot); err != nil {
				return nil, err
			}
			t.units[Fold(w)] = unit
			t.unitWords[unit] = append(t.unitWords[unit], Fold(w))
		}
	}
	for _, required := range []Unit{Minutes, Hours, Days} {
		if len(t.unitWords[required]) == 0 {
			return nil, errors.Errorf("missing names for unit %d", required)
		}
	}

	return t, nil
}

func claim(seen map[string]string, word, slot string) error {
	folded := Fold(word)
	if folded == "" {
		return errors.Errorf("empty keyword in %q", slot)
	}
	if prev, ok := seen[folded]; ok && prev != slot {
		return errors.Errorf("keyword %q is used by both %q and %q", word, prev, slot)
	}
	seen[folded] = slot
	return nil
}
