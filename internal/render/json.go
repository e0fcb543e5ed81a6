/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package render

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"gofountain/internal/fountain"
)

//go:embed schema/result.schema.json
var resultSchema []byte

// Schema returns the JSON schema that JSON output conforms to.
func Schema() []byte { return append([]byte(nil), resultSchema...) }

var schemaLoader = gojsonschema.NewBytesLoader(resultSchema)

// JSON writes res as indented JSON.
func JSON(w io.Writer, res fountain.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}

// ValidateJSON checks data against the result schema and returns every violation.
func ValidateJSON(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("render: validate json: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("render: json does not match schema: %s", strings.Join(msgs, "; "))
}

// DecodeJSON reads a result previously written by JSON.
func DecodeJSON(r io.Reader) (fountain.Result, error) {
	var res fountain.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return fountain.Result{}, fmt.Errorf("render: decode json: %w", err)
	}
	return res, nil
}
