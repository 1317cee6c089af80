package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Timetable",
		Headers: []string{"subject", "teacher"},
		Rows: []map[string]string{
			{"subject": "Algorithms", "teacher": "Dr. Johnson"},
			{"subject": "Statistics, Intro", "teacher": "Dr. Wilson"},
		},
		Footer: "Score 0hard/24soft",
	}
}

func TestCSVExporterQuotesValues(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "subject,teacher\nAlgorithms,Dr. Johnson\n\"Statistics, Intro\",Dr. Wilson\n", string(out))
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVExporterEncodeFillsMissingCells(t *testing.T) {
	data := Dataset{
		Headers: []string{"subject", "room"},
		Rows:    []map[string]string{{"subject": "Physics"}},
	}
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter().Encode(&buf, data))
	assert.Equal(t, "subject,room\nPhysics,\n", buf.String())
	assert.Equal(t, []string{"Physics", ""}, data.Record(0))
}
