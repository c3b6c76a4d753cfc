package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabledesk/internal/reconciler"
)

func loadedColumn(spec reconciler.ColumnSpec) reconciler.ColumnDefinition {
	return reconciler.ColumnDefinition{
		Name:   spec.Name,
		Clause: spec.Clause(),
		Loaded: &reconciler.LoadedColumn{ColumnSpec: spec},
	}
}

func ordersSnapshot() *reconciler.Snapshot {
	return &reconciler.Snapshot{
		Schema: "public",
		Name:   "orders",
		Owner:  "admin",
		Columns: []reconciler.ColumnDefinition{
			loadedColumn(reconciler.ColumnSpec{Name: "id", DataType: "integer", NotNull: true}),
			loadedColumn(reconciler.ColumnSpec{Name: "total", DataType: "numeric", Default: "0"}),
		},
		Constraints: []reconciler.ConstraintDefinition{
			{Name: "orders_pkey", Kind: reconciler.PrimaryKey, Body: "(id)"},
		},
	}
}

func TestNewEditState_UnchangedPlanIsEmpty(t *testing.T) {
	s := NewEditState(ordersSnapshot())

	ops, err := s.Plan()

	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Equal(t, ModeEdit, s.Mode())
}

func TestState_DoesNotTouchSnapshot(t *testing.T) {
	snap := ordersSnapshot()
	s := NewEditState(snap)

	require.NoError(t, s.RemoveColumn("total"))
	require.NoError(t, s.ChangeColumn("id", reconciler.ColumnSpec{Name: "order_id", DataType: "bigint", NotNull: true}))

	assert.Len(t, snap.Columns, 2)
	assert.Equal(t, "id", snap.Columns[0].Name)
	assert.Empty(t, snap.Columns[0].Alter)
}

func TestState_ChangeLoadedColumnMaterializesAlter(t *testing.T) {
	s := NewEditState(ordersSnapshot())

	err := s.ChangeColumn("total", reconciler.ColumnSpec{Name: "Amount", DataType: "numeric(12,2)", NotNull: true})
	require.NoError(t, err)

	ops, err := s.Plan()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, reconciler.KindAlterColumn, ops[0].Kind)
	assert.Equal(t, "total", ops[0].Target)
	assert.Equal(t, []string{
		`ALTER TABLE public.orders RENAME COLUMN total TO "Amount";`,
		`ALTER TABLE public.orders ALTER COLUMN "Amount" TYPE numeric(12,2);`,
		`ALTER TABLE public.orders ALTER COLUMN "Amount" DROP DEFAULT;`,
		`ALTER TABLE public.orders ALTER COLUMN "Amount" SET NOT NULL;`,
	}, ops[0].Statements())
}

func TestState_ChangeColumnBackToLoadedIsNoop(t *testing.T) {
	s := NewEditState(ordersSnapshot())
	original := reconciler.ColumnSpec{Name: "total", DataType: "numeric", Default: "0"}

	require.NoError(t, s.ChangeColumn("total", reconciler.ColumnSpec{Name: "total", DataType: "text"}))
	require.NoError(t, s.ChangeColumn("total", original))

	ops, err := s.Plan()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestState_ChangeNewColumnRewritesInPlace(t *testing.T) {
	s := NewEditState(ordersSnapshot())
	require.NoError(t, s.AddColumn(reconciler.ColumnSpec{Name: "note", DataType: "text"}))
	require.NoError(t, s.ChangeColumn("note", reconciler.ColumnSpec{Name: "memo", DataType: "varchar(80)"}))

	ops, err := s.Plan()

	require.NoError(t, err)
	assert.Equal(t, []reconciler.Operation{
		{Kind: reconciler.KindAddColumn, Table: "public.orders", Target: "memo", Clause: "varchar(80)"},
	}, ops)
}

func TestState_ColumnErrors(t *testing.T) {
	s := NewEditState(ordersSnapshot())

	assert.ErrorIs(t, s.AddColumn(reconciler.ColumnSpec{Name: "id", DataType: "int"}), ErrDuplicateColumn)
	assert.Error(t, s.AddColumn(reconciler.ColumnSpec{Name: "x"}))
	assert.ErrorIs(t, s.RemoveColumn("nope"), ErrColumnNotFound)
	assert.ErrorIs(t, s.ChangeColumn("nope", reconciler.ColumnSpec{DataType: "int"}), ErrColumnNotFound)
	assert.ErrorIs(t, s.ChangeColumn("id", reconciler.ColumnSpec{Name: "total", DataType: "int"}), ErrDuplicateColumn)
}

func TestState_PrimaryKeyUniqueness(t *testing.T) {
	s := NewEditState(ordersSnapshot())

	assert.NotContains(t, s.ConstraintKinds(), reconciler.PrimaryKey)
	err := s.AddConstraint(reconciler.ConstraintDefinition{Kind: reconciler.PrimaryKey, Body: "(total)"})
	assert.ErrorIs(t, err, ErrPrimaryKeyExists)

	require.NoError(t, s.RemoveConstraint(0))
	assert.Contains(t, s.ConstraintKinds(), reconciler.PrimaryKey)

	ops, err := s.Plan()
	require.NoError(t, err)
	assert.Equal(t, []reconciler.Operation{
		{Kind: reconciler.KindDropConstraint, Table: "public.orders", Target: "orders_pkey"},
	}, ops)

	require.NoError(t, s.AddConstraint(reconciler.ConstraintDefinition{Name: "orders_pk2", Kind: reconciler.PrimaryKey, Body: "(id, total)"}))
	ops, err = s.Plan()
	require.NoError(t, err)
	assert.Equal(t, []reconciler.Kind{reconciler.KindDropConstraint, reconciler.KindAddConstraint}, []reconciler.Kind{ops[0].Kind, ops[1].Kind})
}

func TestState_RemoveConstraintOutOfRange(t *testing.T) {
	s := NewCreateState("", "t")

	assert.ErrorIs(t, s.RemoveConstraint(0), ErrConstraintNotFound)
}

func TestState_Inheritance(t *testing.T) {
	s := NewEditState(ordersSnapshot())
	parent := reconciler.TableRef{Name: "audited"}
	parentColumns := []reconciler.ColumnSpec{
		{Name: "created_at", DataType: "timestamp with time zone", NotNull: true, Default: "now()"},
	}

	require.NoError(t, s.AddInheritance(parent, parentColumns))
	assert.ErrorIs(t, s.AddInheritance(parent, parentColumns), ErrAlreadyInherited)

	cols := s.Columns()
	require.Len(t, cols, 3)
	assert.Equal(t, "public.audited", cols[2].InheritedFrom)
	assert.ErrorIs(t, s.RemoveColumn("created_at"), ErrInheritedColumn)
	assert.ErrorIs(t, s.ChangeColumn("created_at", reconciler.ColumnSpec{DataType: "date"}), ErrInheritedColumn)

	ops, err := s.Plan()
	require.NoError(t, err)
	assert.Equal(t, []reconciler.Operation{
		{Kind: reconciler.KindAddColumn, Table: "public.orders", Target: "created_at", Clause: "timestamp with time zone NOT NULL DEFAULT now()"},
		{Kind: reconciler.KindInherit, Table: "public.orders", Target: "public.audited"},
	}, ops)

	require.NoError(t, s.RemoveInheritance(parent))
	assert.Len(t, s.Columns(), 2)
	assert.ErrorIs(t, s.RemoveInheritance(parent), ErrNotInherited)

	ops, err = s.Plan()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestState_RenamePrimaryKeyColumn(t *testing.T) {
	s := NewEditState(ordersSnapshot())

	require.NoError(t, s.ChangeColumn("id", reconciler.ColumnSpec{Name: "order_id", DataType: "integer", NotNull: true}))

	ops, err := s.Plan()
	require.NoError(t, err)
	assert.Equal(t, []reconciler.Operation{
		{Kind: reconciler.KindAlterColumn, Table: "public.orders", Target: "id", Clause: "RENAME COLUMN id TO order_id"},
	}, ops)
}

func TestState_RenameOntoRemovedColumn(t *testing.T) {
	s := NewEditState(ordersSnapshot())

	require.NoError(t, s.RemoveColumn("total"))
	require.NoError(t, s.ChangeColumn("id", reconciler.ColumnSpec{Name: "total", DataType: "integer", NotNull: true}))

	ops, err := s.Plan()
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE public.orders DROP COLUMN total;\n"+
		"ALTER TABLE public.orders RENAME COLUMN id TO total;\n", reconciler.Script(ops))
}

func TestState_OidsAreNeverReAdded(t *testing.T) {
	s := NewEditState(ordersSnapshot())
	s.SetHasOids(true)
	assert.False(t, s.Input().HasOids)

	snap := ordersSnapshot()
	snap.HasOids = true
	s = NewEditState(snap)
	s.SetHasOids(false)

	ops, err := s.Plan()
	require.NoError(t, err)
	assert.Equal(t, []reconciler.Operation{
		{Kind: reconciler.KindWithoutOids, Table: "public.orders", Target: "orders"},
	}, ops)
}

func TestNewCreateState_Plan(t *testing.T) {
	s := NewCreateState("", "events")
	require.NoError(t, s.AddColumn(reconciler.ColumnSpec{Name: "id", DataType: "bigint", NotNull: true}))
	require.NoError(t, s.AddConstraint(reconciler.ConstraintDefinition{Kind: reconciler.PrimaryKey, Body: "(id)"}))
	s.SetOwner("app")
	s.SetGrants([]reconciler.Grant{{Grantee: "reader", Privileges: []string{"SELECT"}}})

	ops, err := s.Plan()

	require.NoError(t, err)
	assert.Equal(t, ModeCreate, s.Mode())
	assert.Equal(t,
		"CREATE TABLE public.events\n(\n   id bigint NOT NULL,\n   PRIMARY KEY (id)\n)\nWITHOUT OIDS;\n"+
			"ALTER TABLE public.events OWNER TO app;\n"+
			"GRANT SELECT ON TABLE public.events TO reader;\n",
		reconciler.Script(ops))
}
