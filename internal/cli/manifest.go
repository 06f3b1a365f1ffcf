package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultNamespace = "default"

// splitRef разбирает ссылку "namespace/name" или "name".
func splitRef(ref string) (namespace, name string, err error) {
	namespace, name, found := strings.Cut(ref, "/")
	if !found {
		namespace, name = defaultNamespace, ref
	}
	if namespace == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid reference %q, expected [NAMESPACE/]NAME", ref)
	}
	return namespace, name, nil
}

// readManifests читает YAML-документы из файла ("-" — stdin).
// JSON — подмножество YAML и тоже принимается. Пустые документы пропускаются.
func readManifests(path string, stdin io.Reader) ([]map[string]any, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	dec := yaml.NewDecoder(r)
	var docs []map[string]any
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s contains no documents", path)
	}
	return docs, nil
}

// readDocument читает один YAML/JSON документ.
func readDocument(path string, stdin io.Reader) (map[string]any, error) {
	docs, err := readManifests(path, stdin)
	if err != nil {
		return nil, err
	}
	if len(docs) > 1 {
		return nil, fmt.Errorf("%s: expected one document, got %d", path, len(docs))
	}
	return docs[0], nil
}

// parseAssignments разбирает пары KEY=VALUE. Значение читается как
// YAML-скаляр: "5" — число, "true" — bool, остальное — строка.
func parseAssignments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid format %q, expected KEY=VALUE", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

// stringField возвращает строковое поле документа.
func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// mergeMaps добавляет в dst ключи src (значения src выигрывают).
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil && src == nil {
		return nil
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
