package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "single blank line",
			text: "\n",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "  \n\t\n   \n",
			want: nil,
		},
		{
			name: "no terminator",
			text: "CREATE TABLE Foo (Id INT);",
			want: []string{"CREATE TABLE Foo (Id INT);"},
		},
		{
			name: "two batches",
			text: "CREATE TABLE A (Id INT);\nGO\nCREATE TABLE B (Id INT);\nGO\n",
			want: []string{"CREATE TABLE A (Id INT);", "CREATE TABLE B (Id INT);"},
		},
		{
			name: "last batch without terminator",
			text: "SELECT 1;\nGO\nSELECT 2;\nSELECT 3;",
			want: []string{"SELECT 1;", "SELECT 2;\nSELECT 3;"},
		},
		{
			name: "terminator case and padding",
			text: "SELECT 1\n  go  \nSELECT 2\n\tGo\n",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "GOTO is not a terminator",
			text: "BEGIN\nGOTO label\nEND",
			want: []string{"BEGIN\nGOTO label\nEND"},
		},
		{
			name: "terminator with trailing text is content",
			text: "SELECT 1\nGO -- next\nSELECT 2",
			want: []string{"SELECT 1\nGO -- next\nSELECT 2"},
		},
		{
			name: "terminator inside single line literal",
			text: "SELECT '...GO...'",
			want: []string{"SELECT '...GO...'"},
		},
		{
			name: "terminator line inside multi-line literal",
			text: "INSERT INTO T VALUES ('first\nGO\nlast')\nGO\nSELECT 1",
			want: []string{"INSERT INTO T VALUES ('first\nGO\nlast')", "SELECT 1"},
		},
		{
			name: "doubled quote escape keeps literal open",
			text: "SELECT 'it''s\nGO\nstill open'\nGO",
			want: []string{"SELECT 'it''s\nGO\nstill open'"},
		},
		{
			name: "quote inside line comment is ignored",
			text: "SELECT 1 -- don't\nGO\nSELECT 2",
			want: []string{"SELECT 1 -- don't", "SELECT 2"},
		},
		{
			name: "terminator inside block comment",
			text: "/* header\nGO\n*/\nSELECT 1\nGO\nSELECT 2",
			want: []string{"/* header\nGO\n*/\nSELECT 1", "SELECT 2"},
		},
		{
			name: "quote inside block comment is ignored",
			text: "/* it's */ SELECT 1\nGO\nSELECT 2",
			want: []string{"/* it's */ SELECT 1", "SELECT 2"},
		},
		{
			name: "blank lines trimmed, inner formatting kept",
			text: "\n\n  SELECT a,\n\n         b\n  FROM t\n\n\nGO\n\n",
			want: []string{"  SELECT a,\n\n         b\n  FROM t"},
		},
		{
			name: "consecutive terminators produce no empty batches",
			text: "GO\nGO\nSELECT 1\nGO\n\nGO",
			want: []string{"SELECT 1"},
		},
		{
			name: "crlf line endings",
			text: "SELECT 1\r\nGO\r\nSELECT 2\r\n",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "quote inside double-quoted identifier",
			text: "CREATE TABLE \"o'brien\" (id int);\nGO\nSELECT 1;",
			want: []string{"CREATE TABLE \"o'brien\" (id int);", "SELECT 1;"},
		},
		{
			name: "quote inside bracketed identifier",
			text: "CREATE TABLE [o'brien] (id int);\nGO\nSELECT 1;",
			want: []string{"CREATE TABLE [o'brien] (id int);", "SELECT 1;"},
		},
		{
			name: "doubled bracket escape keeps identifier open",
			text: "SELECT [a]]b'c] FROM t\nGO\nSELECT 1",
			want: []string{"SELECT [a]]b'c] FROM t", "SELECT 1"},
		},
		{
			name: "terminator line inside multi-line identifier",
			text: "SELECT \"a\nGO\nb\" FROM t\nGO\nSELECT 1",
			want: []string{"SELECT \"a\nGO\nb\" FROM t", "SELECT 1"},
		},
		{
			name: "backslash is literal without escapes",
			text: "SELECT 'C:\\'\nGO\nSELECT 1",
			want: []string{"SELECT 'C:\\'", "SELECT 1"},
		},
		{
			name: "unterminated literal swallows the rest",
			text: "SELECT 'oops\nGO\nSELECT 2",
			want: []string{"SELECT 'oops\nGO\nSELECT 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, DefaultOptions()))
		})
	}
}

func TestSplitDollarQuoting(t *testing.T) {
	opts := DefaultOptions()
	opts.DollarQuoting = true

	text := strings.Join([]string{
		"CREATE FUNCTION f() RETURNS text AS $body$",
		"BEGIN",
		"  RETURN 'x';",
		"GO",
		"END;",
		"$body$ LANGUAGE plpgsql;",
		"GO",
		"SELECT $1, $$x$$;",
		"GO",
		"SELECT 2;",
	}, "\n")

	got := Split(text, opts)
	assert.Len(t, got, 3)
	assert.True(t, strings.HasSuffix(got[0], "$body$ LANGUAGE plpgsql;"))
	assert.Equal(t, "SELECT $1, $$x$$;", got[1])
	assert.Equal(t, "SELECT 2;", got[2])

	// a quote inside a dollar body does not open a literal
	assert.Equal(t, []string{"SELECT $$it's$$;", "SELECT 1"}, Split("SELECT $$it's$$;\nGO\nSELECT 1", opts))

	// without dollar quoting the inner GO splits the function body
	assert.Len(t, Split(text, DefaultOptions()), 4)
}

func TestSplitCustomOptions(t *testing.T) {
	opts := Options{
		Terminator:   ";;",
		LineComments: []string{"--", "#"},
	}
	got := Split("SELECT 1 # it's\n;;\nSELECT 2", opts)
	assert.Equal(t, []string{"SELECT 1 # it's", "SELECT 2"}, got)

	assert.Equal(t, []string{"A\nGO\nB"}, Split("A\nGO\nB", Options{}))
}

func TestSplitBackslashEscapes(t *testing.T) {
	opts := DefaultOptions()
	opts.BackslashEscapes = true
	opts.BracketIdentifiers = false
	opts.BacktickIdentifiers = true

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "escaped quote stays inside literal",
			text: "INSERT INTO t VALUES ('it\\'s');\nGO\nSELECT 1;",
			want: []string{"INSERT INTO t VALUES ('it\\'s');", "SELECT 1;"},
		},
		{
			name: "escaped backslash closes literal",
			text: "SELECT 'C:\\\\';\nGO\nSELECT 1;",
			want: []string{"SELECT 'C:\\\\';", "SELECT 1;"},
		},
		{
			name: "escaped quote in double-quoted literal",
			text: "SELECT \"say \\\"hi\\\" it's\";\nGO\nSELECT 1;",
			want: []string{"SELECT \"say \\\"hi\\\" it's\";", "SELECT 1;"},
		},
		{
			name: "quote inside backtick identifier",
			text: "CREATE TABLE `o'brien` (id int);\nGO\nSELECT 1;",
			want: []string{"CREATE TABLE `o'brien` (id int);", "SELECT 1;"},
		},
		{
			name: "brackets are plain text when disabled",
			text: "SELECT a[1] FROM t;\nGO\nSELECT 1;",
			want: []string{"SELECT a[1] FROM t;", "SELECT 1;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, opts))
		})
	}
}

func TestDollarTag(t *testing.T) {
	assert.Equal(t, "$$", dollarTag("$$ body"))
	assert.Equal(t, "$fn_1$", dollarTag("$fn_1$ body"))
	assert.Equal(t, "", dollarTag("$1"))
	assert.Equal(t, "", dollarTag("$1$"))
	assert.Equal(t, "", dollarTag("$abc"))
	assert.Equal(t, "", dollarTag("$a b$"))
}

// Re-joining the batches with terminator lines keeps every non-blank,
// non-terminator line of the input, in order.
func TestSplitPreservesContent(t *testing.T) {
	inputs := []string{
		"CREATE TABLE A (Id INT);\nGO\nINSERT INTO A VALUES (1);\nGO",
		"SELECT 'GO'\nGO\n  -- comment\nSELECT 2\n\n\nSELECT 3",
		"BEGIN\n  GOTO x\n  x: SELECT 1\nEND\ngo\nSELECT '\nGO\n'",
		"/*\nGO\n*/\nSELECT 1\nGO\nGO\n\nSELECT 4",
	}
	for _, in := range inputs {
		batches := Split(in, DefaultOptions())
		rejoined := strings.Join(batches, "\nGO\n")

		assert.Equal(t, contentLines(in), contentLines(rejoined), in)
	}
}

func contentLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.EqualFold(trimmed, DefaultTerminator) {
			continue
		}
		out = append(out, l)
	}
	return out
}
