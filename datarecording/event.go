// Package datarecording keeps a log of address-space events in SQLite, so
// that the mappings a run produced can be inspected after it exits.
package datarecording

import (
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

// EventTable is the table that holds the events.
const EventTable = "address_space_events"

// Event is what happened to one address space at one point in time.
type Event struct {
	ID          string
	Domain      string
	Event       string
	TextStart   uint64
	TextSize    uint64
	DataStart   uint64
	DataSize    uint64
	StackSize   uint64
	MappedPages int
	Error       string
}

// Failed tells whether the event reports an error.
func (e Event) Failed() bool {
	return e.Error != ""
}

func eventColumns() []string {
	return structs.Names(Event{})
}

func eventValues(e Event) []any {
	return structs.Values(e)
}

// eventFields returns pointers to the fields of e, in column order.
func eventFields(e *Event) []any {
	v := reflect.ValueOf(e).Elem()

	fields := make([]any, v.NumField())
	for i := range fields {
		fields[i] = v.Field(i).Addr().Interface()
	}

	return fields
}

func createEventTableSQL() string {
	columns := make([]string, 0, len(eventColumns()))

	for _, f := range structs.Fields(Event{}) {
		sqlType := "INTEGER"
		if f.Kind() == reflect.String {
			sqlType = "TEXT"
		}

		columns = append(columns, f.Name()+" "+sqlType)
	}

	return "CREATE TABLE IF NOT EXISTS " + EventTable +
		" (\n\t" + strings.Join(columns, ",\n\t") + "\n);\n" +
		"CREATE INDEX IF NOT EXISTS " + EventTable + "_domain ON " +
		EventTable + " (Domain);\n" +
		"CREATE INDEX IF NOT EXISTS " + EventTable + "_event ON " +
		EventTable + " (Event);"
}
