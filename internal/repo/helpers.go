package repo

import (
	"encoding/json"
	"reflect"
)

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// marshalNullable сериализует значение в JSON; nil и пустые map дают NULL.
func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice || rv.Kind() == reflect.Pointer) && rv.IsNil() {
		return nil, nil
	}
	return json.Marshal(v)
}

// unmarshalNullable разбирает JSON-колонку; NULL оставляет dst без изменений.
func unmarshalNullable(data []byte, dst any) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, dst)
}
