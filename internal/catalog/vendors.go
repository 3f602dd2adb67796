package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	vendorNameColumn = "Vendor name"
	vendorIDColumn   = "Vendor id"
)

// ReadVendors parses a vendor list with "Vendor name" and "Vendor id"
// header columns. Rows without a name are dropped.
func ReadVendors(r io.Reader) ([]Vendor, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrVendorFile, err)
	}

	nameCol, idCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case vendorNameColumn:
			nameCol = i
		case vendorIDColumn:
			idCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, vendorNameColumn)
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, vendorIDColumn)
	}

	var vendors []Vendor
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVendorFile, err)
		}
		if nameCol >= len(record) {
			continue
		}

		name := strings.TrimSpace(record[nameCol])
		if name == "" {
			continue
		}
		var code string
		if idCol < len(record) {
			code = strings.TrimSpace(record[idCol])
		}
		vendors = append(vendors, Vendor{Name: name, Code: code})
	}
	return vendors, nil
}

func readVendorFile(path string) ([]Vendor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorFile, err)
	}
	defer f.Close()
	return ReadVendors(f)
}
