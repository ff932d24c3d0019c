package temporal

import (
	"github.com/hrygo/remindbot/plugin/reminder/keyword"
)

// Registry holds one compiled Parser per loaded locale.
type Registry struct {
	tables  *keyword.Tables
	parsers map[*keyword.Table]*Parser
}

// NewRegistry compiles a parser for every locale in tables.
func NewRegistry(tables *keyword.Tables) *Registry {
	r := &Registry{
		tables:  tables,
		parsers: make(map[*keyword.Table]*Parser),
	}
	for _, tag := range tables.Languages() {
		table := tables.Lookup(tag.String())
		if _, ok := r.parsers[table]; !ok {
			r.parsers[table] = NewParser(table)
		}
	}
	return r
}

// For returns the parser best matching lang.
func (r *Registry) For(lang string) *Parser {
	return r.parsers[r.tables.Lookup(lang)]
}
