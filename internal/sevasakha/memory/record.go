package memory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one business event handed to the Indexer: an email, a document,
// a meeting, a contact. It has no identity of its own; only the chunks
// derived from Body are persisted.
type Record struct {
	// SourceType is the category tag used for scoped retrieval ("email",
	// "document", "meeting", ...). Required.
	SourceType string
	Title      string
	Body       string
	// Extra is merged into every chunk's metadata after stringification.
	Extra map[string]any
}

// StringifyMeta renders a metadata value as the string the store keeps:
// nil becomes "", floats use the shortest exact form, times are RFC 3339
// UTC, and string slices are joined with ", ".
func StringifyMeta(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = StringifyMeta(p)
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// baseMetadata builds the metadata shared by every chunk of r. The fixed
// keys (source_type, title, created_at) are written last so Extra can never
// replace them.
func baseMetadata(r Record, now time.Time) map[string]string {
	meta := make(map[string]string, len(r.Extra)+4)
	for k, v := range r.Extra {
		meta[k] = StringifyMeta(v)
	}
	meta[MetaSourceType] = r.SourceType
	meta[MetaTitle] = r.Title
	meta[MetaCreatedAt] = now.UTC().Format(time.RFC3339)
	return meta
}
