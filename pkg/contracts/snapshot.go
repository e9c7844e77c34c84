package contracts

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const pickTaskSchemaURI = "scan-console://schemas/pick-task.json"

//go:embed pick_task.schema.json
var pickTaskSchema []byte

var (
	snapshotOnce   sync.Once
	snapshotSchema *jsonschema.Schema
	snapshotErr    error
)

func compilePickTaskSchema() (*jsonschema.Schema, error) {
	snapshotOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(pickTaskSchema))
		if err != nil {
			snapshotErr = fmt.Errorf("failed to parse pick task schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(pickTaskSchemaURI, doc); err != nil {
			snapshotErr = fmt.Errorf("failed to add pick task schema: %w", err)
			return
		}

		snapshotSchema, snapshotErr = compiler.Compile(pickTaskSchemaURI)
	})
	return snapshotSchema, snapshotErr
}

// ValidatePickTaskSnapshot checks a pick task JSON document before it is reconciled
func ValidatePickTaskSnapshot(data []byte) error {
	schema, err := compilePickTaskSchema()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse task snapshot: %w", err)
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("invalid task snapshot: %w", err)
	}
	return nil
}
