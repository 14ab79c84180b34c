package backup

import "strings"

// EncodeKey converts an absolute path into the backup blob's file name.
// Separators become double underscores per the persisted layout. To keep the
// encoding injective, a literal underscore in the path is escaped first
// ("_" -> "_5f"), so "/a__b" and "/a/b" cannot collide. Paths without
// underscores produce exactly the historical slash-to-double-underscore form.
func EncodeKey(path string) string {
	escaped := strings.ReplaceAll(path, "_", "_5f")
	return strings.ReplaceAll(escaped, "/", "__")
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key string) string {
	path := strings.ReplaceAll(key, "__", "/")
	return strings.ReplaceAll(path, "_5f", "_")
}
