package reconciler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaded(name, clause string) ColumnDefinition {
	return ColumnDefinition{
		Name:   name,
		Clause: clause,
		Loaded: &LoadedColumn{ColumnSpec: ColumnSpec{Name: name, DataType: clause}},
	}
}

func snapshot(cols ...ColumnDefinition) *Snapshot {
	return &Snapshot{Schema: "public", Name: "t", Owner: "admin", Columns: cols}
}

func kinds(ops []Operation) []Kind {
	out := make([]Kind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func TestReconcile_ScenarioA_AddColumn(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer")))
	in.Columns = append(in.Columns, ColumnDefinition{Name: "name", Clause: "text"})

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindAddColumn, Table: "public.t", Target: "name", Clause: "text"},
	}, ops)
	assert.Equal(t, "ALTER TABLE public.t ADD COLUMN name text;\n", Script(ops))
}

func TestReconcile_ScenarioB_DropColumn(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer"), loaded("old", "text")))
	in.Columns = in.Columns[:1]

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindDropColumn, Table: "public.t", Target: "old"},
	}, ops)
}

func TestReconcile_ScenarioC_DropPrimaryKey(t *testing.T) {
	prev := snapshot(loaded("id", "integer"))
	prev.Constraints = []ConstraintDefinition{{Name: "pk1", Kind: PrimaryKey, Body: "(id)"}}
	in := InputFromSnapshot(prev)
	in.Constraints = nil

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindDropConstraint, Table: "public.t", Target: "pk1"},
	}, ops)
	assert.Equal(t, []string{"ALTER TABLE public.t DROP CONSTRAINT IF EXISTS pk1;"}, ops[0].Statements())
}

func TestReconcile_ScenarioD_CreateTable(t *testing.T) {
	in := Input{
		Name:        "t",
		Columns:     []ColumnDefinition{{Name: "id", Clause: "integer"}},
		Constraints: []ConstraintDefinition{{Kind: PrimaryKey, Body: "(id)"}},
	}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, KindCreateTable, ops[0].Kind)
	assert.Equal(t, "\n(\n   id integer,\n   PRIMARY KEY (id)\n)\nWITHOUT OIDS", ops[0].Clause)
	assert.Equal(t,
		"CREATE TABLE public.t\n(\n   id integer,\n   PRIMARY KEY (id)\n)\nWITHOUT OIDS;\n",
		Script(ops))
}

func TestReconcile_CreateTableFull(t *testing.T) {
	in := Input{
		Schema:     "sales",
		Name:       "Orders",
		Owner:      "app",
		Comment:    "all orders",
		Tablespace: "fast",
		Columns: []ColumnDefinition{
			{Name: "id", Clause: "integer NOT NULL"},
			{Name: "note", Clause: "text", InheritedFrom: "sales.base"},
		},
		Constraints: []ConstraintDefinition{{Name: "orders_pk", Kind: PrimaryKey, Body: "(id)"}},
		Inherits:    []TableRef{{Schema: "sales", Name: "base"}},
		Grants:      []Grant{{Grantee: "public", Privileges: []string{"select"}}},
	}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Kind{KindCreateTable, KindOwnerChange, KindSetComment, KindGrant}, kinds(ops))
	assert.Equal(t,
		"\n(\n   id integer NOT NULL,\n   CONSTRAINT orders_pk PRIMARY KEY (id)\n)\nINHERITS (sales.base)\nWITHOUT OIDS\nTABLESPACE fast",
		ops[0].Clause)
	assert.Equal(t, `sales."Orders"`, ops[0].Table)
	assert.Equal(t, []string{`ALTER TABLE sales."Orders" OWNER TO app;`}, ops[1].Statements())
	assert.Equal(t, []string{`COMMENT ON TABLE sales."Orders" IS 'all orders';`}, ops[2].Statements())
	assert.Equal(t, []string{`GRANT SELECT ON TABLE sales."Orders" TO PUBLIC;`}, ops[3].Statements())
}

func TestReconcile_CreateWithOids(t *testing.T) {
	ops, err := Reconcile(Input{Name: "t", HasOids: true, Columns: []ColumnDefinition{{Name: "a", Clause: "int"}}})

	require.NoError(t, err)
	assert.Contains(t, ops[0].Clause, "\nWITH OIDS")
}

func TestReconcile_Idempotent(t *testing.T) {
	prev := &Snapshot{
		Schema:  "public",
		Name:    "child",
		Owner:   "admin",
		Comment: "kept",
		HasOids: true,
		Columns: []ColumnDefinition{
			loaded("id", "integer NOT NULL"),
			loaded("Label", "text DEFAULT 'x'::text"),
			{Name: "created", Clause: "timestamp", InheritedFrom: "public.base"},
		},
		Constraints: []ConstraintDefinition{
			{Name: "child_pkey", Kind: PrimaryKey, Body: "(id)"},
			{Name: "label_uq", Kind: Unique, Body: `("Label")`},
			{Name: "positive", Kind: Check, Body: "((id > 0))"},
		},
		Inherits: []TableRef{{Schema: "public", Name: "base"}},
	}

	ops, err := Reconcile(InputFromSnapshot(prev))

	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestReconcile_SoundnessAndCompleteness(t *testing.T) {
	tests := []struct {
		name     string
		previous []string
		current  []string
		added    []string
		dropped  []string
	}{
		{"disjoint", []string{"a", "b"}, []string{"c", "d"}, []string{"c", "d"}, []string{"a", "b"}},
		{"overlap", []string{"a", "b", "c"}, []string{"b", "x", "c"}, []string{"x"}, []string{"a"}},
		{"from empty", nil, []string{"a"}, []string{"a"}, nil},
		{"to empty", []string{"a", "b"}, nil, nil, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := snapshot()
			for _, name := range tt.previous {
				prev.Columns = append(prev.Columns, loaded(name, "integer"))
			}
			in := InputFromSnapshot(prev)
			in.Columns = nil
			for _, name := range tt.current {
				in.Columns = append(in.Columns, ColumnDefinition{Name: name, Clause: "integer"})
			}

			ops, err := Reconcile(in)
			require.NoError(t, err)

			var added, dropped []string
			for _, op := range ops {
				switch op.Kind {
				case KindAddColumn:
					added = append(added, op.Target)
				case KindDropColumn:
					dropped = append(dropped, op.Target)
				default:
					t.Fatalf("unexpected operation %s", op.Kind)
				}
			}
			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.dropped, dropped)
		})
	}
}

func TestReconcile_ChangedClauseWithoutAlter(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("x", "integer")))
	in.Columns = []ColumnDefinition{{Name: "x", Clause: "text"}}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindDropColumn, Table: "public.t", Target: "x"},
		{Kind: KindAddColumn, Table: "public.t", Target: "x", Clause: "text"},
	}, ops)
}

func TestReconcile_AlterColumn(t *testing.T) {
	prev := snapshot(loaded("a", "integer"))
	in := InputFromSnapshot(prev)
	in.Columns = []ColumnDefinition{{
		Name:   "b",
		Clause: "bigint",
		Alter:  "RENAME COLUMN a TO b\nALTER COLUMN b TYPE bigint",
		Loaded: prev.Columns[0].Loaded,
	}}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, KindAlterColumn, ops[0].Kind)
	assert.Equal(t, "a", ops[0].Target)
	assert.Equal(t, []string{
		"ALTER TABLE public.t RENAME COLUMN a TO b;",
		"ALTER TABLE public.t ALTER COLUMN b TYPE bigint;",
	}, ops[0].Statements())
}

func TestReconcile_NewColumnReusesRenamedName(t *testing.T) {
	prev := snapshot(loaded("a", "integer"))
	in := InputFromSnapshot(prev)
	in.Columns = []ColumnDefinition{
		{Name: "a", Clause: "text"},
		{Name: "b", Clause: "integer", Alter: "RENAME COLUMN a TO b", Loaded: prev.Columns[0].Loaded},
	}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindAlterColumn, Table: "public.t", Target: "a", Clause: "RENAME COLUMN a TO b"},
		{Kind: KindAddColumn, Table: "public.t", Target: "a", Clause: "text"},
	}, ops)
}

func TestReconcile_RenameThenOwner(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer")))
	in.Name = "u"
	in.Owner = "bob"
	in.Columns = append(in.Columns, ColumnDefinition{Name: "extra", Clause: "text"})

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindRename, Table: "public.t", Target: "u"},
		{Kind: KindOwnerChange, Table: "public.u", Target: "bob"},
		{Kind: KindAddColumn, Table: "public.u", Target: "extra", Clause: "text"},
	}, ops)
	assert.Equal(t, []string{"ALTER TABLE public.t RENAME TO u;"}, ops[0].Statements())
}

func TestReconcile_EmptyOwnerKeepsOwner(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer")))
	in.Owner = ""

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestReconcile_RemoveInheritance(t *testing.T) {
	prev := snapshot(
		loaded("id", "integer"),
		ColumnDefinition{Name: "pcol", Clause: "text", InheritedFrom: "public.parent"},
	)
	prev.Inherits = []TableRef{{Schema: "public", Name: "parent"}}
	in := InputFromSnapshot(prev)
	in.Inherits = nil
	in.Columns = in.Columns[:1]

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindNoInherit, Table: "public.t", Target: "public.parent"},
		{Kind: KindDropColumn, Table: "public.t", Target: "pcol"},
	}, ops)
	assert.Equal(t, []string{"ALTER TABLE public.t NO INHERIT public.parent;"}, ops[0].Statements())
}

func TestReconcile_AddInheritanceAddsMissingParentColumns(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer")))
	in.Inherits = []TableRef{{Schema: "public", Name: "base"}}
	in.Columns = append(in.Columns,
		ColumnDefinition{Name: "id", Clause: "integer", InheritedFrom: "public.base"},
		ColumnDefinition{Name: "bcol", Clause: "integer NOT NULL", InheritedFrom: "public.base"},
	)

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindAddColumn, Table: "public.t", Target: "bcol", Clause: "integer NOT NULL"},
		{Kind: KindInherit, Table: "public.t", Target: "public.base"},
	}, ops)
}

func TestReconcile_ExistingParentColumnsAreNotAdded(t *testing.T) {
	prev := snapshot(loaded("id", "integer"), ColumnDefinition{Name: "pcol", Clause: "text", InheritedFrom: "public.base"})
	prev.Inherits = []TableRef{{Schema: "public", Name: "base"}}

	ops, err := Reconcile(InputFromSnapshot(prev))

	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestReconcile_ReplacePrimaryKey(t *testing.T) {
	prev := snapshot(loaded("id", "integer"), loaded("name", "text"))
	prev.Constraints = []ConstraintDefinition{
		{Name: "pk1", Kind: PrimaryKey, Body: "(id)"},
		{Name: "chk", Kind: Check, Body: "((id > 0))"},
	}
	in := InputFromSnapshot(prev)
	in.Constraints = []ConstraintDefinition{
		{Name: "uq", Kind: Unique, Body: "(name)"},
		{Name: "pk2", Kind: PrimaryKey, Body: "(id, name)"},
	}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindAddConstraint, Table: "public.t", Target: "uq", Clause: "UNIQUE (name)"},
		{Kind: KindDropConstraint, Table: "public.t", Target: "pk1"},
		{Kind: KindAddConstraint, Table: "public.t", Target: "pk2", Clause: "PRIMARY KEY (id, name)"},
		{Kind: KindDropConstraint, Table: "public.t", Target: "chk"},
	}, ops)
}

func TestReconcile_RedefineConstraintKeepsName(t *testing.T) {
	prev := snapshot(loaded("a", "integer"), loaded("b", "integer"))
	prev.Constraints = []ConstraintDefinition{{Name: "uq", Kind: Unique, Body: "(a)"}}
	in := InputFromSnapshot(prev)
	in.Constraints = []ConstraintDefinition{{Name: "uq", Kind: Unique, Body: "(a, b)"}}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Kind{KindDropConstraint, KindAddConstraint}, kinds(ops))
	assert.Equal(t, []string{"ALTER TABLE public.t ADD CONSTRAINT uq UNIQUE (a, b);"}, ops[1].Statements())
}

func TestReconcile_UnnamedConstraintIsAddedWithoutName(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer")))
	in.Constraints = []ConstraintDefinition{{Kind: Check, Body: "((id > 0))"}}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, []string{"ALTER TABLE public.t ADD CHECK ((id > 0));"}, ops[0].Statements())
}

func TestReconcile_OidsMonotonic(t *testing.T) {
	withPK := []ConstraintDefinition{{Name: "pk", Kind: PrimaryKey, Body: "(id)"}}

	t.Run("removed with primary key", func(t *testing.T) {
		prev := snapshot(loaded("id", "integer"))
		prev.HasOids = true
		prev.Constraints = withPK
		in := InputFromSnapshot(prev)
		in.HasOids = false

		ops, err := Reconcile(in)
		require.NoError(t, err)
		assert.Equal(t, []Kind{KindWithoutOids}, kinds(ops))
		assert.Equal(t, []string{"ALTER TABLE public.t SET WITHOUT OIDS;"}, ops[0].Statements())
	})

	t.Run("never re-enabled", func(t *testing.T) {
		prev := snapshot(loaded("id", "integer"))
		prev.Constraints = withPK
		in := InputFromSnapshot(prev)
		in.HasOids = true

		ops, err := Reconcile(in)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("kept without primary key", func(t *testing.T) {
		prev := snapshot(loaded("id", "integer"))
		prev.HasOids = true
		in := InputFromSnapshot(prev)
		in.HasOids = false

		ops, err := Reconcile(in)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})
}

func TestReconcile_CommentAndGrants(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("id", "integer")))
	in.Comment = "it's here"
	in.Grants = []Grant{{Grantee: "Reporting", Privileges: []string{"select", " insert"}}}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, "COMMENT ON TABLE public.t IS 'it''s here';\n"+
		"GRANT SELECT, INSERT ON TABLE public.t TO \"Reporting\";\n", Script(ops))
}

func TestReconcile_ClearComment(t *testing.T) {
	prev := snapshot(loaded("id", "integer"))
	prev.Comment = "old"
	in := InputFromSnapshot(prev)
	in.Comment = ""

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []string{"COMMENT ON TABLE public.t IS NULL;"}, ops[0].Statements())
}

func TestReconcile_ValidationErrors(t *testing.T) {
	base := func() Input {
		prev := snapshot(loaded("id", "integer"))
		return InputFromSnapshot(prev)
	}

	tests := []struct {
		name   string
		mutate func(in *Input)
		field  string
	}{
		{"empty name", func(in *Input) { in.Name = " " }, "name"},
		{"duplicate column", func(in *Input) {
			in.Columns = append(in.Columns, ColumnDefinition{Name: "id", Clause: "text"})
		}, "columns[1]"},
		{"column without type", func(in *Input) {
			in.Columns = append(in.Columns, ColumnDefinition{Name: "x"})
		}, "columns[1]"},
		{"constraint on unknown column", func(in *Input) {
			in.Constraints = []ConstraintDefinition{{Kind: Unique, Body: "(missing)"}}
		}, "constraints[0]"},
		{"second primary key", func(in *Input) {
			in.Constraints = []ConstraintDefinition{
				{Kind: PrimaryKey, Body: "(id)"},
				{Kind: PrimaryKey, Body: "(id)"},
			}
		}, "constraints[1]"},
		{"inherited from unknown parent", func(in *Input) {
			in.Columns = append(in.Columns, ColumnDefinition{Name: "p", Clause: "int", InheritedFrom: "public.nope"})
		}, "columns[1]"},
		{"bad privilege", func(in *Input) {
			in.Grants = []Grant{{Grantee: "bob", Privileges: []string{"EXECUTE"}}}
		}, "grants[0]"},
		{"empty grantee", func(in *Input) {
			in.Grants = []Grant{{Privileges: []string{"SELECT"}}}
		}, "grants[0]"},
		{"unnamed loaded constraint", func(in *Input) {
			in.Previous.Constraints = []ConstraintDefinition{{Kind: Check, Body: "(true)"}}
		}, "previous.constraints[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)

			ops, err := Reconcile(in)

			require.Error(t, err)
			assert.Nil(t, ops)
			assert.True(t, errors.Is(err, ErrInvalidState))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestReconcile_InheritedColumnRemovedWhileParentStays(t *testing.T) {
	prev := snapshot(
		loaded("id", "integer"),
		ColumnDefinition{Name: "pcol", Clause: "text", InheritedFrom: "public.parent"},
	)
	prev.Inherits = []TableRef{{Schema: "public", Name: "parent"}}
	in := InputFromSnapshot(prev)
	in.Columns = in.Columns[:1]

	_, err := Reconcile(in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "pcol")
}

func TestReconcile_AlterInCreationModeRejected(t *testing.T) {
	_, err := Reconcile(Input{Name: "t", Columns: []ColumnDefinition{{Name: "a", Clause: "int", Alter: "ALTER COLUMN a TYPE bigint"}}})

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	prev := snapshot(loaded("id", "integer"), loaded("old", "text"))
	in := InputFromSnapshot(prev)
	in.Columns = []ColumnDefinition{{Name: "id", Clause: "bigint"}}

	_, err := Reconcile(in)

	require.NoError(t, err)
	assert.Len(t, prev.Columns, 2)
	assert.Equal(t, "integer", prev.Columns[0].Clause)
	assert.Equal(t, "bigint", in.Columns[0].Clause)
}

func TestReconcile_RenameOntoDroppedColumnDropsFirst(t *testing.T) {
	prev := snapshot(loaded("a", "integer"), loaded("b", "text"))
	in := InputFromSnapshot(prev)
	in.Columns = []ColumnDefinition{
		{Name: "b", Clause: "integer", Alter: "RENAME COLUMN a TO b", Loaded: prev.Columns[0].Loaded},
	}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindDropColumn, Table: "public.t", Target: "b"},
		{Kind: KindAlterColumn, Table: "public.t", Target: "a", Clause: "RENAME COLUMN a TO b"},
	}, ops)
}

func TestReconcile_AlterWithoutLoadedColumnRejected(t *testing.T) {
	in := InputFromSnapshot(snapshot(loaded("a", "integer")))
	in.Columns = []ColumnDefinition{{Name: "a", Clause: "bigint", Alter: "ALTER COLUMN a TYPE bigint"}}

	ops, err := Reconcile(in)

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "no loaded definition")
	assert.Empty(t, ops)
}

func TestReconcile_KeptConstraintFollowsColumnRename(t *testing.T) {
	prev := snapshot(loaded("a", "integer"), loaded("b", "text"))
	prev.Constraints = []ConstraintDefinition{{Name: "t_pkey", Kind: PrimaryKey, Body: "(a)"}}
	in := InputFromSnapshot(prev)
	in.Columns[0] = ColumnDefinition{Name: "id", Clause: "integer", Alter: "RENAME COLUMN a TO id", Loaded: prev.Columns[0].Loaded}

	ops, err := Reconcile(in)

	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Kind: KindAlterColumn, Table: "public.t", Target: "a", Clause: "RENAME COLUMN a TO id"},
	}, ops)
}

func TestReconcile_NewConstraintOnRenamedAwayNameRejected(t *testing.T) {
	prev := snapshot(loaded("a", "integer"))
	in := InputFromSnapshot(prev)
	in.Columns[0] = ColumnDefinition{Name: "id", Clause: "integer", Alter: "RENAME COLUMN a TO id", Loaded: prev.Columns[0].Loaded}
	in.Constraints = []ConstraintDefinition{{Name: "uq", Kind: Unique, Body: "(a)"}}

	_, err := Reconcile(in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, `unknown column "a"`)
}
