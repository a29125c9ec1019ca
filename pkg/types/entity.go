package types

// Entity is a record persisted by a backend. EntityID returns the identity
// that is unique within a table; an empty string means the entity has no
// identity yet (for example, a value that was never persisted).
type Entity interface {
	EntityID() string
}

// IDField is the document key that carries the entity identity.
const IDField = "id"

// Document is a schemaless entity keyed by the "id" field. It serves as both
// the readable and the writable shape for tables whose structure is not known
// at compile time.
type Document map[string]any

// EntityID returns the string value stored under "id", or "" when the key is
// missing or not a string.
func (d Document) EntityID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a shallow copy of the document. Nested values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
