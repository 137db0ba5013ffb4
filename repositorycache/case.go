package repositorycache

import (
	"reflect"
	"strings"
	"unicode"
)

// NamespaceFor derives the cache namespace of entity type T: the snake cased
// type name with pointers and package path removed, so *crm.ServiceType
// becomes service_type.
func NamespaceFor[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, _, _ := strings.Cut(t.Name(), "[")
	return toSnake(name)
}

// Namespace normalizes a resource name the way WithNamespace does, so
// "serviceType" becomes service_type.
func Namespace(name string) string {
	return toSnake(name)
}

// toSnake splits s into lower cased words joined by underscores. A word
// starts at an upper case letter following a lower case letter or digit, or
// at the last capital of an acronym ("HTTPClient" is http_client). Anything
// that is not a letter or digit separates words.
func toSnake(s string) string {
	runes := []rune(s)
	words := make([]string, 0, 4)
	word := make([]rune, 0, len(runes))

	flush := func() {
		if len(word) > 0 {
			words = append(words, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && len(word) > 0:
			acronymEnd := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(runes[i-1]) || acronymEnd {
				flush()
			}
			word = append(word, r)
		default:
			word = append(word, r)
		}
	}
	flush()

	return strings.Join(words, "_")
}
