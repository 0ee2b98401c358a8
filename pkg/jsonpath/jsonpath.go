// Package jsonpath looks up values in JSON documents using a small JSONPath
// subset ($.a.b, $.a[0], $['a']) on top of gjson.
package jsonpath

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var bracketReplacer = strings.NewReplacer(
	"['", ".", "']", "",
	`["`, ".", `"]`, "",
	"[", ".", "]", "",
)

// Get returns the value at path.
func Get(doc []byte, path string) (gjson.Result, error) {
	if len(doc) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return gjson.Result{}, fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(doc) {
		return gjson.Result{}, fmt.Errorf("invalid JSON document")
	}

	result := gjson.GetBytes(doc, ToGjsonPath(path))
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("path not found: %s", path)
	}
	return result, nil
}

// Extract returns the value at path as a string. Objects and arrays are
// returned as raw JSON, null as "null".
func Extract(doc string, path string) (string, error) {
	result, err := Get([]byte(doc), path)
	if err != nil {
		return "", err
	}

	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// Exists reports whether path resolves in doc.
func Exists(doc []byte, path string) bool {
	_, err := Get(doc, path)
	return err == nil
}

// ToGjsonPath converts a JSONPath expression to gjson syntax.
//
//	$.users[0].name  ->  users.0.name
//	$['name']        ->  name
//	$                ->  @this
func ToGjsonPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return "@this"
	}

	path = bracketReplacer.Replace(path)
	return strings.TrimPrefix(path, ".")
}
