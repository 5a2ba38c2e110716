package engine

import "testing"

func TestDetectFormatLong(t *testing.T) {
	table := [][]string{
		{"Region_Code", "region_name", "WAREHOUSE_ID", "warehouse_name", "time_hours"},
		{"RU-MOW", "Москва", "w1", "Склад Подольск", "12"},
	}
	det := DetectFormat(table, "")
	if det.Format != FormatLong {
		t.Fatalf("expected long format, got %s (%s)", det.Format, det.ReasonCode)
	}
	if det.LongColumns["time_hours"] != 4 {
		t.Fatalf("expected time_hours at column 4, got %d", det.LongColumns["time_hours"])
	}
}

func TestDetectFormatPriorityWide(t *testing.T) {
	table := [][]string{
		{"Регион", "1-й приоритет", "2-й приоритет"},
		{"Москва", "Склад 7, 28 ч", "Склад 2, 40 ч"},
		{"Казань", "Склад 2, 16 ч", ""},
	}
	det := DetectFormat(table, "")
	if det.Format != FormatPriorityWide {
		t.Fatalf("expected priority_wide, got %s (%s)", det.Format, det.ReasonCode)
	}
	if len(det.PriorityColumns) != 2 {
		t.Fatalf("expected 2 priority columns, got %v", det.PriorityColumns)
	}
}

func TestDetectFormatWideMatrix(t *testing.T) {
	table := [][]string{
		{"region", "Склад Север", "Склад Юг"},
		{"Москва", "12", ""},
		{"Казань", "24,5", "16"},
	}
	det := DetectFormat(table, "")
	if det.Format != FormatWideMatrix {
		t.Fatalf("expected wide_matrix, got %s (%s)", det.Format, det.ReasonCode)
	}
	if len(det.ValueColumns) != 2 {
		t.Fatalf("expected 2 value columns, got %v", det.ValueColumns)
	}
}

func TestDetectFormatRegionHint(t *testing.T) {
	table := [][]string{
		{"Область доставки", "Склад А", "Склад Б"},
		{"Москва", "10", "20"},
	}
	if det := DetectFormat(table, ""); det.Format != FormatUnknown || det.ReasonCode != ReasonNoRegionColumn {
		t.Fatalf("expected NO_REGION_COLUMN without hint, got %s (%s)", det.Format, det.ReasonCode)
	}
	det := DetectFormat(table, "Область доставки")
	if det.Format != FormatWideMatrix || det.RegionColumn != 0 {
		t.Fatalf("expected wide_matrix via hint, got %s col=%d", det.Format, det.RegionColumn)
	}
}

func TestDetectFormatUnrecognized(t *testing.T) {
	cases := []struct {
		name   string
		table  [][]string
		reason string
	}{
		{"empty table", nil, ReasonEmptyTable},
		{"blank header", [][]string{{"", ""}, {"a", "b"}}, ReasonEmptyTable},
		{"duplicate headers", [][]string{{"region", "x", "X"}, {"Москва", "1", "2"}}, ReasonDuplicateHeaders},
		{"no region column", [][]string{{"city", "a", "b"}, {"Москва", "1", "2"}}, ReasonNoRegionColumn},
		{"single value column", [][]string{{"region", "orders"}, {"Москва", "10"}}, ReasonUnrecognized},
	}
	for _, tc := range cases {
		det := DetectFormat(tc.table, "")
		if det.Format != FormatUnknown {
			t.Fatalf("%s: expected unknown, got %s", tc.name, det.Format)
		}
		if det.ReasonCode != tc.reason {
			t.Fatalf("%s: expected reason %s, got %s", tc.name, tc.reason, det.ReasonCode)
		}
	}
}

func TestDetectFormatPreviewCapped(t *testing.T) {
	table := [][]string{{"city", "a", "b"}}
	for i := 0; i < 20; i++ {
		table = append(table, []string{"x", "1", "2"})
	}
	det := DetectFormat(table, "")
	if len(det.Preview) != previewRows {
		t.Fatalf("expected preview of %d rows, got %d", previewRows, len(det.Preview))
	}
}

func TestDetectWideMatrixSkipsTextColumn(t *testing.T) {
	table := [][]string{
		{"region", "Склад Север", "Склад Юг", "Комментарий"},
		{"Москва", "12", "30", "проверить тариф"},
		{"Казань", "24,5", "16", ""},
	}
	det := DetectFormat(table, "")
	if det.Format != FormatWideMatrix {
		t.Fatalf("expected wide_matrix, got %s (%s)", det.Format, det.ReasonCode)
	}
	if len(det.ValueColumns) != 2 {
		t.Fatalf("expected 2 value columns, got %v", det.ValueColumns)
	}
	for _, c := range det.ValueColumns {
		if c == 3 {
			t.Fatalf("text column included as a warehouse: %v", det.ValueColumns)
		}
	}
}

func TestForceFormat(t *testing.T) {
	wide := [][]string{
		{"Область доставки", "Склад А", "Склад Б"},
		{"Москва", "10", "20"},
	}
	long := [][]string{
		{"region_code", "region_name", "warehouse_id", "warehouse_name", "time_hours"},
		{"RU-MOW", "Москва", "w1", "Склад", "12"},
	}
	ranked := [][]string{
		{"Регион", "1-й приоритет", "Комментарий"},
		{"Москва", "Склад 7, 28 ч", "уточнить"},
	}

	cases := []struct {
		name       string
		table      [][]string
		format     Format
		regionHint string
		want       Format
		reason     string
	}{
		{"long headers present", long, FormatLong, "", FormatLong, ""},
		{"long headers missing", wide, FormatLong, "", FormatUnknown, ReasonUnrecognized},
		{"wide needs region hint", wide, FormatWideMatrix, "", FormatUnknown, ReasonNoRegionColumn},
		{"wide with region hint", wide, FormatWideMatrix, "Область доставки", FormatWideMatrix, ""},
		{"priority with rank headers", ranked, FormatPriorityWide, "регион", FormatPriorityWide, ""},
		{"priority without rank headers", wide, FormatPriorityWide, "Область доставки", FormatPriorityWide, ""},
		{"unknown tag", wide, Format("xlsx"), "", FormatUnknown, ReasonUnrecognized},
		{"empty table", nil, FormatLong, "", FormatUnknown, ReasonEmptyTable},
	}
	for _, tc := range cases {
		det := ForceFormat(tc.table, tc.format, tc.regionHint)
		if det.Format != tc.want {
			t.Fatalf("%s: expected %s, got %s (%s)", tc.name, tc.want, det.Format, det.ReasonCode)
		}
		if tc.want == FormatUnknown && det.ReasonCode != tc.reason {
			t.Fatalf("%s: expected reason %s, got %s", tc.name, tc.reason, det.ReasonCode)
		}
	}
}

func TestForceFormatPriorityColumns(t *testing.T) {
	// With rank headers only those columns are parsed; without them the
	// fallback takes every non-region column.
	ranked := [][]string{
		{"Регион", "1-й приоритет", "Комментарий"},
		{"Москва", "Склад 7, 28 ч", "уточнить"},
	}
	det := ForceFormat(ranked, FormatPriorityWide, "регион")
	if len(det.PriorityColumns) != 1 || det.PriorityColumns[0] != 1 {
		t.Fatalf("expected rank column [1], got %v", det.PriorityColumns)
	}

	unranked := [][]string{
		{"Регион", "Основной склад", "Резервный склад"},
		{"Москва", "Склад 7, 28 ч", "Склад 2, 40 ч"},
	}
	det = ForceFormat(unranked, FormatPriorityWide, "регион")
	if len(det.PriorityColumns) != 2 {
		t.Fatalf("expected fallback to both non-region columns, got %v", det.PriorityColumns)
	}
}

func TestDetectLongWinsOverWide(t *testing.T) {
	// A long table also has a numeric column; rules are ordered, first
	// match wins.
	table := [][]string{
		{"region_code", "region_name", "warehouse_id", "warehouse_name", "time_hours"},
		{"RU-MOW", "Москва", "w1", "Склад", "12"},
	}
	if det := DetectFormat(table, ""); det.Format != FormatLong {
		t.Fatalf("expected long, got %s", det.Format)
	}
}
