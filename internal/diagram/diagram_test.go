package diagram

import (
	"strings"
	"testing"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

func sampleTables() []schema.Table {
	return []schema.Table{
		{
			Schema: "dbo",
			Name:   "customers",
			Columns: []schema.Column{
				{Name: "id", Type: "int", IsPK: true, PKOrding: 1},
				{Name: "name", Type: "nvarchar(100) COLLATE SQL_Latin1_General_CP1_CI_AS", Nullable: true},
			},
		},
		{
			Schema: "dbo",
			Name:   "orders",
			Columns: []schema.Column{
				{Name: "id", Type: "int", IsPK: true, PKOrding: 1},
				{Name: "customer_id", Type: "int"},
				{Name: "note", Type: "nvarchar(max)", Nullable: true},
			},
			FKs: []schema.ForeignKey{
				{
					Name:   "fk_orders_customers",
					Schema: "dbo", Table: "orders", Columns: []string{"customer_id"},
					RefSchema: "dbo", RefTable: "customers", RefColumns: []string{"id"},
				},
			},
		},
	}
}

func TestRenderMermaidAllColumns(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatMermaid, Columns: ColumnsAll})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := `erDiagram
    dbo_customers {
        int id PK
        nvarchar name
    }
    dbo_orders {
        int id PK
        int customer_id FK
        nvarchar note
    }
    dbo_customers ||--o{ dbo_orders : "customer_id"`
	if got != want {
		t.Errorf("mermaid output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMermaidKeysOnly(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatMermaid, Columns: ColumnsKeys})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if strings.Contains(got, "note") || strings.Contains(got, " name") {
		t.Errorf("keys mode kept a non-key column:\n%s", got)
	}
	for _, want := range []string{"int id PK", "int customer_id FK"} {
		if !strings.Contains(got, want) {
			t.Errorf("keys mode missing %q:\n%s", want, got)
		}
	}
}

func TestRenderMermaidNoColumns(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatMermaid, Columns: ColumnsNone})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := `erDiagram
    dbo_customers {
    }
    dbo_orders {
    }
    dbo_customers ||--o{ dbo_orders : "customer_id"`
	if got != want {
		t.Errorf("mermaid none output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMermaidMarksPrimaryAndForeign(t *testing.T) {
	tables := []schema.Table{
		{
			Schema: "dbo",
			Name:   "order_items",
			Columns: []schema.Column{
				{Name: "order_id", Type: "int", IsPK: true, PKOrding: 1},
				{Name: "line_no", Type: "int", IsPK: true, PKOrding: 2},
			},
			FKs: []schema.ForeignKey{
				{
					Name:   "fk_items_orders",
					Schema: "dbo", Table: "order_items", Columns: []string{"order_id"},
					RefSchema: "dbo", RefTable: "orders", RefColumns: []string{"id"},
				},
			},
		},
	}

	got, err := Render(tables, Options{Format: FormatMermaid, Columns: ColumnsAll})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got, "int order_id PK, FK") {
		t.Errorf("column in both key roles should carry both markers:\n%s", got)
	}
	if !strings.Contains(got, "int line_no PK\n") {
		t.Errorf("plain key column should carry PK only:\n%s", got)
	}
}

func TestRenderMermaidDedupesEdges(t *testing.T) {
	tables := []schema.Table{
		{
			Schema: "dbo",
			Name:   "orders",
			Columns: []schema.Column{
				{Name: "id", Type: "int", IsPK: true, PKOrding: 1},
				{Name: "billing_customer_id", Type: "int"},
				{Name: "shipping_customer_id", Type: "int"},
			},
			FKs: []schema.ForeignKey{
				{
					Name:   "fk_orders_billing",
					Schema: "dbo", Table: "orders", Columns: []string{"billing_customer_id"},
					RefSchema: "dbo", RefTable: "customers", RefColumns: []string{"id"},
				},
				{
					Name:   "fk_orders_shipping",
					Schema: "dbo", Table: "orders", Columns: []string{"shipping_customer_id"},
					RefSchema: "dbo", RefTable: "customers", RefColumns: []string{"id"},
				},
			},
		},
	}

	got, err := Render(tables, Options{Format: FormatMermaid, Columns: ColumnsAll})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if n := strings.Count(got, "||--o{"); n != 1 {
		t.Errorf("edge count = %d, want 1 after dedup:\n%s", n, got)
	}
	// The first constraint labels the surviving edge.
	if !strings.Contains(got, `: "billing_customer_id"`) {
		t.Errorf("surviving edge should carry the first constraint's columns:\n%s", got)
	}
}

func TestRenderPlantUML(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatPlantUML, Columns: ColumnsAll})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := `@startuml
hide circle
skinparam linetype ortho
entity dbo_customers {
  * id : int
  name : nvarchar
}
entity dbo_orders {
  * id : int
  # customer_id : int
  note : nvarchar
}
dbo_customers ||--o{ dbo_orders
@enduml`
	if got != want {
		t.Errorf("plantuml output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderPlantUMLNoColumns(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatPlantUML, Columns: ColumnsNone})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got, "entity dbo_customers {}") {
		t.Errorf("none mode should collapse entities:\n%s", got)
	}
	if !strings.Contains(got, "dbo_customers ||--o{ dbo_orders") {
		t.Errorf("none mode keeps relationship edges:\n%s", got)
	}
}

func TestRenderDBML(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatDBML, Columns: ColumnsAll})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := `Table dbo_customers {
  id int [pk, not null]
  name nvarchar
}

Table dbo_orders {
  id int [pk, not null]
  customer_id int [not null]
  note nvarchar
}

Ref: dbo_orders.customer_id > dbo_customers.id
`
	if got != want {
		t.Errorf("dbml output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderDBMLCompositeConstraint(t *testing.T) {
	tables := []schema.Table{
		{
			Schema: "dbo",
			Name:   "orders",
			Columns: []schema.Column{
				{Name: "region", Type: "char(2)", IsPK: true, PKOrding: 1},
				{Name: "id", Type: "int", IsPK: true, PKOrding: 2},
			},
		},
		{
			Schema: "dbo",
			Name:   "shipments",
			Columns: []schema.Column{
				{Name: "id", Type: "int", IsPK: true, PKOrding: 1},
				{Name: "order_region", Type: "char(2)"},
				{Name: "order_id", Type: "int"},
			},
			FKs: []schema.ForeignKey{
				{
					Name:   "fk_shipments_orders",
					Schema: "dbo", Table: "shipments", Columns: []string{"order_region", "order_id"},
					RefSchema: "dbo", RefTable: "orders", RefColumns: []string{"region", "id"},
				},
			},
		},
	}

	got, err := Render(tables, Options{Format: FormatDBML, Columns: ColumnsAll})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "Ref: dbo_shipments.(order_region, order_id) > dbo_orders.(region, id)"
	if !strings.Contains(got, want) {
		t.Errorf("composite reference missing %q:\n%s", want, got)
	}
}

func TestRenderDBMLNoColumnsSkipsRefs(t *testing.T) {
	got, err := Render(sampleTables(), Options{Format: FormatDBML, Columns: ColumnsNone})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(got, "Ref:") {
		t.Errorf("references need rendered columns on both sides:\n%s", got)
	}
	if !strings.Contains(got, "Table dbo_orders {\n}") {
		t.Errorf("none mode should render empty table blocks:\n%s", got)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render(nil, Options{Format: "graphviz"}); err == nil {
		t.Error("Render() with unknown format should fail")
	}
}

func TestRenderUnknownColumnMode(t *testing.T) {
	if _, err := Render(nil, Options{Format: FormatMermaid, Columns: "full"}); err == nil {
		t.Error("Render() with unknown column mode should fail")
	}
}

func TestCleanType(t *testing.T) {
	cases := []struct{ in, want string }{
		{"INT", "int"},
		{"nvarchar(100)", "nvarchar"},
		{"nvarchar(100) COLLATE SQL_Latin1_General_CP1_CI_AS", "nvarchar"},
		{"decimal(18, 2)", "decimal"},
		{`"numeric"`, "numeric"},
		{"timestamp without time zone", "timestamp without time zone"},
	}
	for _, c := range cases {
		if got := cleanType(c.in); got != c.want {
			t.Errorf("cleanType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanName(t *testing.T) {
	cases := []struct {
		schemaName, table, want string
	}{
		{"dbo", "orders", "dbo_orders"},
		{"sales", "order items", "sales_order_items"},
		{"", "pre-prod", "pre_prod"},
	}
	for _, c := range cases {
		if got := cleanName(c.schemaName, c.table); got != c.want {
			t.Errorf("cleanName(%q, %q) = %q, want %q", c.schemaName, c.table, got, c.want)
		}
	}
}
