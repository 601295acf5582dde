package manifest

import "strings"

// ToPackageName converts a dependency name to a package name.
// "my-lib" -> "mylib", "MyLib" -> "mylib", "geo_core" -> "geocore"
func ToPackageName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// reservedNamespaces lists root packages the engine itself populates.
// Dependencies cannot install under them.
var reservedNamespaces = map[string]bool{
	"core": true, // Any, Nothing, Null
	"go":   true, // host packages
}

// IsReservedNamespace reports whether name would install a dependency
// under a package the engine owns. Only the root segment is checked:
// "vendor.core" is fine because the root is "vendor".
func IsReservedNamespace(name string) bool {
	root := name
	if idx := strings.Index(name, "."); idx >= 0 {
		root = name[:idx]
	}
	return reservedNamespaces[root]
}
