package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/db/ent/schema/utils"
)

// ExtractJob is one file attempt within a batch. The run ledger builds its
// table and validates writes from this definition.
type ExtractJob struct{ ent.Schema }

func (ExtractJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extract_jobs"},
	}
}

func (ExtractJob) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").NotEmpty().Immutable(),
		field.String("batch_id").NotEmpty().Immutable(),
		field.String("file_name").NotEmpty().Immutable(),
		field.String("status").
			Validate(utils.EnumValidator(constants.JobStatuses...)),
		field.String("error_kind").Optional().Nillable().
			Validate(utils.EnumValidator(constants.ErrorKinds...)),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("raw_response").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("started_at").Default(time.Now).Immutable(),
		field.Time("finished_at").Optional().Nillable(),
	}
}

func (ExtractJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("batch_id", "started_at"),
		index.Fields("started_at"),
	}
}
