package scraper

import (
	"os"
	"strings"
	"testing"
)

func TestParseRows(t *testing.T) {
	// Load test fixture
	data, err := os.ReadFile("../../testdata/fixtures/phivolcs_latest.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	rows, found, err := parseRows(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("parseRows failed: %v", err)
	}
	if !found {
		t.Fatal("expected the earthquake table to be found")
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	first := rows[0]
	want := []string{
		"01 August 2025 - 12:05 AM",
		"9.50",
		"126.20",
		"012",
		"2.8",
		"035 km N 78° E of Hinatuan (Surigao Del Sur)",
	}
	for i, cell := range want {
		if first.Cells[i] != cell {
			t.Errorf("Cells[%d] = %q, want %q", i, first.Cells[i], cell)
		}
	}

	// Header cells come from the first row of the listing table
	if len(first.Header) != 6 || first.Header[4] != "Mag" {
		t.Errorf("Header = %q, want listing header", first.Header)
	}

	// Page order is preserved
	if !strings.HasPrefix(rows[2].Cells[0], "31 July 2025 - 10:10 PM") {
		t.Errorf("rows[2] = %q, want the 10:10 PM record", rows[2].Cells)
	}
}

func TestParseRows_EdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantFound bool
		wantRows  int
	}{
		{
			name:      "no table",
			html:      `<html><body><p>No data available</p></body></html>`,
			wantFound: false,
		},
		{
			name: "unrelated table only",
			html: `<table><tr><th>Advisory</th></tr><tr><td>None</td></tr></table>`,
			wantFound: false,
		},
		{
			name: "header only",
			html: `<table><tr><th>Date-Time</th><th>Magnitude</th></tr></table>`,
			wantFound: true,
			wantRows:  0,
		},
		{
			name: "short rows dropped",
			html: `<table>
				<tr><td>Date-Time</td><td>Lat</td><td>Lon</td><td>Depth</td><td>Magnitude</td><td>Location</td></tr>
				<tr><td>2025-07-15 10:00</td><td>10.0</td><td>120.0</td><td>10</td><td>4.1</td></tr>
				<tr><td>2025-07-15 10:10</td><td>10.1</td><td>120.1</td><td>5</td><td>3.2</td><td>Location B</td></tr>
			</table>`,
			wantFound: true,
			wantRows:  1,
		},
		{
			name: "extra columns kept",
			html: `<table>
				<tr><th>Date-Time</th><th>Lat</th><th>Lon</th><th>Depth</th><th>Magnitude</th><th>Location</th><th>Bulletin</th></tr>
				<tr><td>2025-07-15 10:10</td><td>10.1</td><td>120.1</td><td>5</td><td>3.2</td><td>Location B</td><td>No. 1</td></tr>
			</table>`,
			wantFound: true,
			wantRows:  1,
		},
		{
			name: "first matching table wins",
			html: `<table><tr><th>Magnitude</th></tr>
				<tr><td>2025-07-15 10:10</td><td>10.1</td><td>120.1</td><td>5</td><td>3.2</td><td>Location B</td></tr></table>
				<table><tr><th>Magnitude</th></tr>
				<tr><td>2025-07-15 10:20</td><td>10.1</td><td>120.1</td><td>5</td><td>3.2</td><td>Location C</td></tr>
				<tr><td>2025-07-15 10:30</td><td>10.1</td><td>120.1</td><td>5</td><td>3.2</td><td>Location D</td></tr></table>`,
			wantFound: true,
			wantRows:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, found, err := parseRows(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("parseRows() unexpected error: %v", err)
			}
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("got %d rows, want %d", len(rows), tt.wantRows)
			}
		})
	}
}

func TestParseRows_ExtraColumns(t *testing.T) {
	html := `<table>
		<tr><th>Date-Time</th><th>Lat</th><th>Lon</th><th>Depth</th><th>Magnitude</th><th>Location</th><th>Bulletin</th></tr>
		<tr><td>2025-07-15 10:10</td><td>10.1</td><td>120.1</td><td>5</td><td>3.2</td><td>Location B</td><td>No. 1</td></tr>
	</table>`

	rows, _, err := parseRows(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || len(rows[0].Cells) != 7 {
		t.Fatalf("expected one row with 7 cells, got %+v", rows)
	}
	if rows[0].Header[6] != "Bulletin" || rows[0].Cells[6] != "No. 1" {
		t.Errorf("extra column = %q/%q, want Bulletin/No. 1", rows[0].Header[6], rows[0].Cells[6])
	}
}
