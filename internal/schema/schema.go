// Package schema derives a model response schema, and a matching human-readable
// output format, from a Go struct so the two cannot drift apart.
package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Generate returns the response schema for t in the OpenAPI subset accepted by
// structured-output APIs.
//
// A struct field is required unless its json tag carries omitempty. An `enum` tag
// holds pipe-separated allowed values.
func Generate(t reflect.Type) (map[string]interface{}, error) {
	return typeToJSONSchema(t)
}

// For is Generate for a type parameter.
func For[T any]() (map[string]interface{}, error) {
	return Generate(reflect.TypeOf((*T)(nil)).Elem())
}

func typeToJSONSchema(t reflect.Type) (map[string]interface{}, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		props := map[string]interface{}{}
		var requiredFields []string

		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue
			}

			jsonName, omitEmpty := jsonFieldName(f)
			if jsonName == "" {
				continue
			}

			fieldSchema, err := typeToJSONSchema(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			if enum := f.Tag.Get("enum"); enum != "" {
				if fieldSchema["type"] != "string" {
					return nil, fmt.Errorf("field %s: enum on non-string type", f.Name)
				}
				fieldSchema["enum"] = strings.Split(enum, "|")
			}

			props[jsonName] = fieldSchema
			if !omitEmpty {
				requiredFields = append(requiredFields, jsonName)
			}
		}

		objSchema := map[string]interface{}{
			"type":       "object",
			"properties": props,
		}
		if len(requiredFields) > 0 {
			objSchema["required"] = requiredFields
		}
		return objSchema, nil

	case reflect.String:
		return map[string]interface{}{"type": "string"}, nil
	case reflect.Int, reflect.Int64, reflect.Int32:
		return map[string]interface{}{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}, nil
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}, nil
	case reflect.Slice, reflect.Array:
		elemSchema, err := typeToJSONSchema(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":  "array",
			"items": elemSchema,
		}, nil
	default:
		// maps and interfaces have no fixed shape for the model to follow
		return nil, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

func jsonFieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if tag == "" {
		return strings.ToLower(f.Name), false
	}
	parts := strings.Split(tag, ",")
	omitEmpty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	if parts[0] == "" {
		return strings.ToLower(f.Name), omitEmpty
	}
	return parts[0], omitEmpty
}
