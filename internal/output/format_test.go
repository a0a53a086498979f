package output_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/output"
)

type rendered struct{ Name string }

func (r rendered) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, "name="+r.Name+"\n")
	return err
}

func TestFormatter_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	f := output.NewFormatter(output.FormatJSON, &buf)

	require.NoError(t, f.Print(rendered{Name: "eth"}))

	var result map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "eth", result["Name"])
	assert.True(t, f.IsJSON())
}

func TestFormatter_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"renderer", rendered{Name: "pol"}, "name=pol\n"},
		{"string", "hello world", "hello world\n"},
		{"other", 42, "42\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			f := output.NewFormatter(output.FormatText, &buf)
			require.NoError(t, f.Print(tc.in))
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestFormatter_Printf(t *testing.T) {
	t.Parallel()

	var text bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatText, &text).Printf("hello %s\n", "world"))
	assert.Equal(t, "hello world\n", text.String())

	var js bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatJSON, &js).Printf("hello %s\n", "world"))
	assert.Empty(t, js.String(), "free text never pollutes JSON output")
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	assert.Equal(t, output.FormatText, output.DetectFormat(&buf, output.FormatText))
	assert.Equal(t, output.FormatJSON, output.DetectFormat(&buf, output.FormatAuto))
	assert.Equal(t, output.FormatJSON, output.DetectFormat(&buf, ""))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, output.FormatJSON, output.DetectFormat(f, output.FormatAuto), "regular files are not terminals")
	assert.Equal(t, output.FormatJSON, output.NewFormatter(output.FormatAuto, f).Format())
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, output.FormatJSON, output.ParseFormat(" JSON "))
	assert.Equal(t, output.FormatText, output.ParseFormat("text"))
	assert.Equal(t, output.FormatAuto, output.ParseFormat("yaml"))
}

func TestKeyValues(t *testing.T) {
	t.Parallel()
	kv := output.KeyValues{
		{Key: "address", Value: "0xf39F"},
		{Key: "chain", Value: "137"},
	}

	var buf bytes.Buffer
	require.NoError(t, kv.RenderText(&buf))
	assert.Equal(t, "address:  0xf39F\nchain:    137\n", buf.String())

	data, err := json.Marshal(kv)
	require.NoError(t, err)
	assert.Equal(t, `{"address":"0xf39F","chain":"137"}`, string(data))
}

func TestTable(t *testing.T) {
	t.Parallel()
	tbl := output.NewTable("ID", "DECIMALS")
	tbl.AlignRight(1)
	tbl.AddRow("eth", "18")
	tbl.AddRow("usdc", "6")

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "ID    DECIMALS\n----  --------\neth         18\nusdc         6\n", tbl.String())

	tbl.SetNoHeader(true)
	assert.Equal(t, "eth   18\nusdc   6\n", tbl.String())

	assert.Empty(t, output.NewTable().String())
}

func TestMessages(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	output.Info(&buf, "switching to %s", "Polygon")
	output.Warn(&buf, "unsigned")
	output.Success(&buf, "sent %d", 1)

	assert.Contains(t, buf.String(), "switching to Polygon\n")
	assert.Contains(t, buf.String(), "unsigned\n")
	assert.Contains(t, buf.String(), "sent 1\n")
}
