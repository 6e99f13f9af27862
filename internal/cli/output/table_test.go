package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	data := NewTableData("NAME", "VALUE", "UNIT")
	data.AddRow("battery.soc", "0.8", "")
	data.AddRow("battery.voltage", "52.4", "V")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, data))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "battery.soc")
	assert.Contains(t, out, "52.4")
	assert.Contains(t, out, "V")
}

func TestEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, NewTableData("NAME")))
	assert.Contains(t, buf.String(), "NAME")
}
