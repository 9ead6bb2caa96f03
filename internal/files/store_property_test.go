package files

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSanitizerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)

	properties.Property("text names only contain the allowed alphabet", prop.ForAll(
		func(name string) bool {
			clean := SanitizeTextName(name)
			if len([]rune(clean)) != len([]rune(name)) {
				return false
			}
			for _, r := range clean {
				ok := r == ' ' || r == '-' || r == '_' ||
					(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
				if !ok {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("text sanitizing is idempotent", prop.ForAll(
		func(name string) bool {
			once := SanitizeTextName(name)
			return SanitizeTextName(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("content names never leave the directory", prop.ForAll(
		func(parts []string) bool {
			name := strings.Join(parts, "/")
			clean := SanitizeContentName(name)
			if clean == "" {
				return true
			}
			if clean == ".." || strings.ContainsRune(clean, filepath.Separator) {
				return false
			}
			joined := filepath.Join("/srv/content", clean)
			return filepath.Dir(joined) == "/srv/content"
		},
		gen.SliceOf(gen.OneGenOf(gen.Const(".."), gen.Const("."), gen.Const(""), gen.AlphaString())),
	))

	properties.TestingRun(t)
}
