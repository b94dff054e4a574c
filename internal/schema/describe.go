package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Describe renders an example JSON document for t, in struct field order, using
// each field's `example` tag as the placeholder value. Slices are shown with a
// single element.
func Describe(t reflect.Type) string {
	var b strings.Builder
	describe(&b, t, 0)
	return b.String()
}

func describe(b *strings.Builder, t reflect.Type, depth int) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	indent := strings.Repeat("    ", depth)
	b.WriteString("{\n")

	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		if name, _ := jsonFieldName(f); name == "" {
			continue
		}
		fields = append(fields, f)
	}

	for i, f := range fields {
		name, _ := jsonFieldName(f)
		fmt.Fprintf(b, "%s    %q: ", indent, name)
		describeValue(b, f, depth+1)
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
}

func describeValue(b *strings.Builder, f reflect.StructField, depth int) {
	ft := f.Type
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}

	switch ft.Kind() {
	case reflect.Struct:
		describe(b, ft, depth)
	case reflect.Slice, reflect.Array:
		elem := ft.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct {
			b.WriteString("[")
			describe(b, elem, depth)
			b.WriteString("]")
			return
		}
		fmt.Fprintf(b, "[%q]", exampleOf(f))
	default:
		fmt.Fprintf(b, "%q", exampleOf(f))
	}
}

func exampleOf(f reflect.StructField) string {
	if ex := f.Tag.Get("example"); ex != "" {
		return ex
	}
	return f.Type.Kind().String()
}
