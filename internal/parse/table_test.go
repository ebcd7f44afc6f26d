package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		delimiter     rune
		expected      []Row
		expectedDelim rune
		skipped       int
	}{
		{
			name:          "Plain comma table",
			input:         "id,name,room\nEQ001,Projector,Room 101\nEQ002,Computer,Room 101\n",
			expected:      []Row{{"EQ001", "Projector", "Room 101"}, {"EQ002", "Computer", "Room 101"}},
			expectedDelim: ',',
		},
		{
			name:          "Header synonyms and BOM",
			input:         "\ufeff編號,名稱,教室\nEQ001,投影機,101教室\n",
			expected:      []Row{{"EQ001", "投影機", "101教室"}},
			expectedDelim: ',',
		},
		{
			name:          "Semicolon sniffed",
			input:         "Asset_ID;Item;Location\nEQ003;Speaker;Room 102\n",
			expected:      []Row{{"EQ003", "Speaker", "Room 102"}},
			expectedDelim: ';',
		},
		{
			name:          "Tab override",
			input:         "code\tname\tclassroom\nEQ004\tWhiteboard, large\tRoom 102\n",
			delimiter:     '\t',
			expected:      []Row{{"EQ004", "Whiteboard, large", "Room 102"}},
			expectedDelim: '\t',
		},
		{
			name:          "Duplicate ids keep last value at first position",
			input:         "id,name,room\nEQ001,Old,Room 101\nEQ002,Computer,Room 101\nEQ001,New,Room 103\n",
			expected:      []Row{{"EQ001", "New", "Room 103"}, {"EQ002", "Computer", "Room 101"}},
			expectedDelim: ',',
		},
		{
			name:          "Rows without id and non UTF-8 rows are skipped",
			input:         "id,name,room\n,Orphan,Room 101\nEQ005,Sc\xffanner,Room 103\nEQ006,Printer,Room 103\n\n",
			expected:      []Row{{"EQ006", "Printer", "Room 103"}},
			expectedDelim: ',',
			skipped:       2,
		},
		{
			name:          "Quoted fields and extra columns",
			input:         "\"id\",\"name\",\"room\",\"status\"\n\"EQ007\",\"Camera\",\"Music Room\",\"Checked\"\n",
			expected:      []Row{{"EQ007", "Camera", "Music Room"}},
			expectedDelim: ',',
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := ReadTable(strings.NewReader(tc.input), tc.delimiter)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, table.Rows)
			assert.Equal(t, tc.expectedDelim, table.Delimiter)
			assert.Equal(t, tc.skipped, table.Skipped)
		})
	}
}

func TestReadTable_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected error
	}{
		{name: "Empty input", input: "", expected: ErrNoRows},
		{name: "Header only", input: "id,name,room\n", expected: ErrNoRows},
		{name: "Missing room column", input: "id,name\nEQ001,Projector\n", expected: ErrMissingColumns},
		{name: "Only blank ids", input: "id,name,room\n,,\n , x, y\n", expected: ErrNoRows},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tc.input), 0)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	testCases := []struct {
		in        string
		expected  rune
		expectErr bool
	}{
		{in: "", expected: 0},
		{in: ",", expected: ','},
		{in: ";", expected: ';'},
		{in: "tab", expected: '\t'},
		{in: "\t", expected: '\t'},
		{in: `\t`, expected: '\t'},
		{in: "|", expected: '|'},
		{in: "ab", expectErr: true},
		{in: `"`, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			r, err := ParseDelimiter(tc.in)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, r)
		})
	}
}
