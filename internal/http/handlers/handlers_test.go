package handlers

import (
	"bytes"
	"math"
	"mime/multipart"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestReadCSVTable_RaggedRows(t *testing.T) {
	content := "region,Склад А,Склад Б\nМосква,10,20\nКазань,15\n"
	fh := makeMultipartFile(t, "file", "speeds.csv", content)
	table, err := readCSVTable(fh)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(table) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table))
	}
	if len(table[2]) != 2 {
		t.Fatalf("expected ragged row kept as-is, got %d cells", len(table[2]))
	}
}

func TestParseSalesTable(t *testing.T) {
	table := [][]string{
		{"region_code", "orders"},
		{"moskva", "120"},
		{"kazan", "30,5"},
	}
	records, errs := parseSalesTable(table)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Orders != 30.5 {
		t.Fatalf("expected comma decimal parsed, got %v", records[1].Orders)
	}
}

func TestParseSalesTable_RowErrors(t *testing.T) {
	table := [][]string{
		{"region_code", "orders"},
		{"", "120"},
		{"kazan", "abc"},
		{"spb", "-3"},
	}
	_, errs := parseSalesTable(table)
	if len(errs) != 3 {
		t.Fatalf("expected 3 row errors, got %d: %v", len(errs), errs)
	}
}

func TestParseSalesTable_MissingColumns(t *testing.T) {
	table := [][]string{
		{"region", "sales"},
		{"moskva", "120"},
	}
	_, errs := parseSalesTable(table)
	if len(errs) != 1 {
		t.Fatalf("expected a header error, got %v", errs)
	}
}

func TestFmtHours(t *testing.T) {
	if got := fmtHours(math.Inf(1)); got != "∞" {
		t.Fatalf("expected infinity marker, got %q", got)
	}
	if got := fmtHours(12.5); got != "12.50" {
		t.Fatalf("expected 12.50, got %q", got)
	}
}

func TestSetActiveRequestAllowsEmptyList(t *testing.T) {
	v := validator.New()

	empty := []string{}
	if err := v.Struct(SetActiveRequest{WarehouseIDs: &empty}); err != nil {
		t.Fatalf("empty list must be accepted (clears the set), got %v", err)
	}

	if err := v.Struct(SetActiveRequest{}); err == nil {
		t.Fatal("missing warehouse_ids must be rejected")
	}
}

func TestValidateExt(t *testing.T) {
	if !validateExt("speeds.CSV") {
		t.Fatal("expected .CSV to be accepted")
	}
	if validateExt("speeds.xlsx") {
		t.Fatal("expected .xlsx to be rejected")
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
