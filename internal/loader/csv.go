package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads delimited text. Input that is not valid UTF-8 is decoded as
// ISO-8859-1. Lines whose field count differs from the header are skipped.
func readCSV(r io.Reader) (*rawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(err, "could not read the file")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, malformed(err, "could not decode the file")
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	table := &rawTable{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && table.header != nil {
				table.skipped++
				continue
			}
			return nil, malformed(err, "could not parse the header line")
		}

		if table.header == nil {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
			table.header = record
			continue
		}
		if len(record) != len(table.header) {
			table.skipped++
			continue
		}
		table.rows = append(table.rows, record)
	}

	return table, nil
}
