package keyword

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestEmbedded_Lookup(t *testing.T) {
	tables, err := Embedded("en")
	require.NoError(t, err)

	tests := []struct {
		lang string
		want language.Tag
	}{
		{"", language.English},
		{"en", language.English},
		{"en-GB", language.English},
		{"ru", language.Russian},
		{"ru-RU", language.Russian},
		{"tlh", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.want, tables.Lookup(tt.lang).Language)
		})
	}

	assert.Equal(t, language.English, tables.Languages()[0])
}

func TestTable_Resolution(t *testing.T) {
	tables, err := Embedded("en")
	require.NoError(t, err)
	en := tables.Lookup("en")

	offset, ok := en.DayOffset("Day  After TOMORROW")
	require.True(t, ok)
	assert.Equal(t, 2, offset)

	wd, ok := en.Weekday("Friday")
	require.True(t, ok)
	assert.Equal(t, time.Friday, wd)

	tod, ok := en.TimeOfDay("tonight")
	require.True(t, ok)
	assert.Equal(t, Evening, tod)

	unit, ok := en.Unit("mins")
	require.True(t, ok)
	assert.Equal(t, Minutes, unit)

	_, ok = en.Unit("fortnights")
	assert.False(t, ok)

	assert.Equal(t, "(copy)", en.CopyMarker)
}

func TestTable_RussianFolding(t *testing.T) {
	tables, err := Embedded("en")
	require.NoError(t, err)
	ru := tables.Lookup("ru")

	offset, ok := ru.DayOffset("Завтра")
	require.True(t, ok)
	assert.Equal(t, 1, offset)

	wd, ok := ru.Weekday("В ПЯТНИЦУ")
	require.True(t, ok)
	assert.Equal(t, time.Friday, wd)

	assert.Equal(t, []string{"через"}, ru.In())
}

func TestTable_WordsLongestFirst(t *testing.T) {
	tables, err := Embedded("en")
	require.NoError(t, err)
	en := tables.Lookup("en")

	words := en.DateWords()
	require.NotEmpty(t, words)
	assert.Equal(t, "the day after tomorrow", words[0])

	idxLong, idxShort := -1, -1
	for i, w := range words {
		switch w {
		case "day after tomorrow":
			idxLong = i
		case "tomorrow":
			idxShort = i
		}
	}
	assert.Less(t, idxLong, idxShort)

	assert.Equal(t, []string{"minutes", "minute", "mins", "min"}, en.UnitWords(Minutes))
}

const validLocale = `
language: de
in: [in]
dates:
  today: [heute]
weekdays:
  monday: [montag]
  tuesday: [dienstag]
  wednesday: [mittwoch]
  thursday: [donnerstag]
  friday: [freitag]
  saturday: [samstag]
  sunday: [sonntag]
units:
  minutes: [minuten]
  hours: [stunden]
  days: [tagen]
`

func TestLoad_FromFS(t *testing.T) {
	fsys := fstest.MapFS{"de.yaml": {Data: []byte(validLocale)}}

	tables, err := Load(fsys, "de")
	require.NoError(t, err)

	de := tables.Lookup("de-AT")
	assert.Equal(t, language.German, de.Language)
	assert.Equal(t, "(copy)", de.CopyMarker)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    fstest.MapFS
		fallback string
	}{
		{"no files", fstest.MapFS{}, "en"},
		{"bad yaml", fstest.MapFS{"x.yaml": {Data: []byte("language: [")}}, "en"},
		{"missing fallback", fstest.MapFS{"de.yaml": {Data: []byte(validLocale)}}, "en"},
		{"missing in", fstest.MapFS{"de.yaml": {Data: []byte("language: de\n")}}, "de"},
		{"unknown slot", fstest.MapFS{"de.yaml": {Data: []byte(validLocale + "times:\n  brunch: [brunch]\n")}}, "de"},
		{"conflicting keyword", fstest.MapFS{"de.yaml": {Data: []byte(strings.Replace(validLocale, "today: [heute]", "today: [heute]\n  tomorrow: [montag]", 1))}}, "de"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.files, tt.fallback)
			assert.Error(t, err)
		})
	}
}
