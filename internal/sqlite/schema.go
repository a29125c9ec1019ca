package sqlite

// The query engine holds every table in one documents relation. seq keeps
// insertion order; updates rewrite body in place and keep seq.
const (
	createDocuments = `CREATE TABLE documents (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    table_name TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    body TEXT NOT NULL,
    UNIQUE (table_name, doc_id)
);`

	idxDocumentsTable = `CREATE INDEX idx_documents_table ON documents(table_name, seq);`
)

// schemaDDL is executed in order on every Attach against a fresh database.
var schemaDDL = []string{
	createDocuments,
	idxDocumentsTable,
}
