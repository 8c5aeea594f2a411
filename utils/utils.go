package utils

import (
	"reflect"

	"github.com/iancoleman/strcase"
)

func CamelCase(s string) string {
	return strcase.ToCamel(s)
}

func SnakeCase(s string) string {
	return strcase.ToSnake(s)
}

// TypeName returns the snake cased name of T with pointers stripped, e.g.
// *redis.Client -> "client". Unnamed types fall back to their literal form.
func TypeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if name := t.Name(); name != "" {
		return SnakeCase(name)
	}

	return t.String()
}

func init() {
	strcase.ConfigureAcronym("API", "api")
	strcase.ConfigureAcronym("ID", "id")
}
