package calendar

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

//go:embed schemas/export.schema.json
var exportSchemaJSON string

var exportSchema = jsonschema.MustCompileString("turnclock-export.schema.json", exportSchemaJSON)

// validateExportJSON checks a native export document against the export
// schema before it is decoded. Errors name the offending JSON pointer.
func validateExportJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return apperror.NewValidation("invalid export JSON: " + err.Error())
	}
	if err := exportSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return apperror.NewValidation("export does not match schema: " + schemaMessage(verr))
		}
		return apperror.NewValidation("export does not match schema: " + err.Error())
	}
	return nil
}

// schemaMessage flattens the deepest causes of a validation error.
func schemaMessage(verr *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	if len(msgs) > 5 {
		msgs = append(msgs[:5], fmt.Sprintf("and %d more", len(msgs)-5))
	}
	return strings.Join(msgs, "; ")
}
