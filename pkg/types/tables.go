package types

// Default table names used when the configuration lists none.
const (
	PeopleTable = "people"
	NotesTable  = "notes"
)

// DefaultTableNames lists the tables a backend serves when Config.Tables is
// empty.
var DefaultTableNames = []string{
	PeopleTable,
	NotesTable,
}
