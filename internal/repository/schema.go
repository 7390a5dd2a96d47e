package repository

import (
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	entschema "entgo.io/ent/dialect/sql/schema"

	dbschema "github.com/joseph-ayodele/invoice-extractor/db/ent/schema"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// tableSchema is a table built from an ent schema definition together with
// the string validators declared on its fields.
type tableSchema struct {
	table      *entschema.Table
	validators map[string][]func(string) error
}

var extractJobs = mustLoadSchema(dbschema.ExtractJob{})

func mustLoadSchema(s ent.Interface) *tableSchema {
	ts, err := loadSchema(s)
	if err != nil {
		panic(err)
	}
	return ts
}

func loadSchema(s ent.Interface) (*tableSchema, error) {
	name := ""
	for _, a := range s.Annotations() {
		if ann, ok := a.(entsql.Annotation); ok && ann.Table != "" {
			name = ann.Table
		}
	}
	if name == "" {
		return nil, fmt.Errorf("schema %T has no table annotation", s)
	}

	ts := &tableSchema{table: entschema.NewTable(name), validators: map[string][]func(string) error{}}
	for _, f := range s.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, d.Err)
		}
		col := &entschema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Nullable:   d.Optional,
			SchemaType: d.SchemaType,
		}
		if d.Name == "id" {
			ts.table.AddPrimary(col)
		} else {
			ts.table.AddColumn(col)
		}
		for _, v := range d.Validators {
			if fn, ok := v.(func(string) error); ok {
				ts.validators[d.Name] = append(ts.validators[d.Name], fn)
			}
		}
	}
	if len(ts.table.PrimaryKey) == 0 {
		return nil, fmt.Errorf("schema %T has no id field", s)
	}

	for _, idx := range s.Indexes() {
		d := idx.Descriptor()
		ts.table.AddIndex(name+"_"+strings.Join(d.Fields, "_"), d.Unique, d.Fields)
	}
	return ts, nil
}

func (ts *tableSchema) name() string { return ts.table.Name }

// check runs the field validators declared for column against value.
func (ts *tableSchema) check(column, value string) error {
	for _, fn := range ts.validators[column] {
		if err := fn(value); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", common.ErrInvalidInput, ts.table.Name, column, err)
		}
	}
	return nil
}
