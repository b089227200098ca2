package db

import (
	"fmt"
	"strings"
)

// collectionPrefix namespaces part collections inside the database so
// unrelated tables never collide with a part name.
const collectionPrefix = "part_"

// maxCollectionName caps generated table names; SurrealDB has no hard limit
// but part ids come from filenames and can be arbitrarily long.
const maxCollectionName = 64

// collectionSchema is the per-part table definition. One table per part
// keeps collections fully isolated: records of different parts never share
// a namespace or an index. The HNSW index dimension is fixed at collection
// creation and every upsert must match it.
const collectionSchema = `
    DEFINE TABLE IF NOT EXISTS %[1]s SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS feature_type ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS label ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS user_intent ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS parameters ON %[1]s TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS timestamp ON %[1]s TYPE datetime;
    DEFINE FIELD IF NOT EXISTS description ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON %[1]s TYPE array<float>;

    DEFINE INDEX IF NOT EXISTS %[1]s_timestamp ON %[1]s FIELDS timestamp;
    DEFINE INDEX IF NOT EXISTS %[1]s_feature_type ON %[1]s FIELDS feature_type;
    DEFINE INDEX IF NOT EXISTS %[1]s_embedding ON %[1]s FIELDS embedding HNSW DIMENSION %[2]d DIST COSINE TYPE F32;
`

// CollectionName converts an arbitrary part id (a filename, a spoken part
// name) into a valid SurrealDB table name: lowercase alphanumerics and
// underscores, prefixed and length-capped.
func CollectionName(partID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(partID)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := collectionPrefix + b.String()
	if len(name) > maxCollectionName {
		name = name[:maxCollectionName]
	}
	return name
}

// PartIDFromCollection recovers the sanitized part id from a collection
// table name. Lossy: sanitization is not reversible, so this is only for
// listing known parts.
func PartIDFromCollection(table string) (string, bool) {
	if !strings.HasPrefix(table, collectionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(table, collectionPrefix), true
}

func collectionDDL(table string, dimension int) string {
	return fmt.Sprintf(collectionSchema, table, dimension)
}
