package importer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrBadWorkbook = errors.New("unreadable workbook")

// Workbook columns, matched case-insensitively against the header row.
// One row is one listing; consecutive rows describing the same farm are
// merged into a single farm record whose optional columns come from the
// first of those rows. A row with no crop_name is a farm without listings.
const (
	colName            = "name"
	colCountry         = "country"
	colLocation        = "location"
	colDescription     = "description"
	colWebsite         = "website"
	colImageURL        = "image_url"
	colRating          = "rating"
	colIcon            = "icon"
	colCropName        = "crop_name"
	colCropCategory    = "crop_category"
	colCropSeason      = "crop_season"
	colCropOrigin      = "crop_origin"
	colCropDescription = "crop_description"
	colCropEmoji       = "crop_emoji"
	colQuantity        = "quantity"
	colPrice           = "price"
	colAvailable       = "available"
)

var requiredColumns = []string{colName, colCountry, colLocation}

// LoadBatch reads a batch file, choosing the format by extension: .xlsx is
// read as a workbook, anything else as a JSON array.
func LoadBatch(path string) ([]FarmRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadWorkbook(path)
	}
	return LoadFile(path)
}

func LoadWorkbook(path string) ([]FarmRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoFile, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParseWorkbook(f)
}

// ParseWorkbook reads the first sheet of an .xlsx workbook.
func ParseWorkbook(r io.Reader) ([]FarmRecord, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWorkbook, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrBadWorkbook)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWorkbook, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrBadWorkbook, sheets[0])
	}

	header := map[string]int{}
	for i, cell := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadWorkbook, col)
		}
	}

	records := make([]FarmRecord, 0)
	for _, row := range rows[1:] {
		get := func(col string) string {
			i, ok := header[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if isBlankRow(row) {
			continue
		}

		farm := FarmRecord{
			Name:        get(colName),
			Country:     get(colCountry),
			Location:    get(colLocation),
			Description: get(colDescription),
			Website:     get(colWebsite),
			ImageURL:    get(colImageURL),
			Icon:        get(colIcon),
		}
		farm.Rating = cellNumber(get, colRating, &farm.notes)

		n := len(records)
		if n == 0 || !sameFarm(records[n-1], farm) {
			records = append(records, farm)
			n++
		} else {
			records[n-1].notes = append(records[n-1].notes, farm.notes...)
		}
		if crop, ok := cropFromRow(get); ok {
			records[n-1].Crops = append(records[n-1].Crops, crop)
		}
	}
	return records, nil
}

func cropFromRow(get func(string) string) (CropRecord, bool) {
	crop := CropRecord{
		Name:        get(colCropName),
		Category:    get(colCropCategory),
		Season:      get(colCropSeason),
		Origin:      get(colCropOrigin),
		Description: get(colCropDescription),
		Emoji:       get(colCropEmoji),
	}
	if crop.Name == "" && crop.Origin == "" {
		return crop, false
	}

	crop.Quantity = int(math.Trunc(cellNumber(get, colQuantity, &crop.notes)))
	crop.Price = cellNumber(get, colPrice, &crop.notes)
	if raw := get(colAvailable); raw != "" {
		if avail, ok := parseFlag(raw); ok {
			crop.Available = &avail
		} else {
			crop.notes = append(crop.notes, fmt.Sprintf("%s %q is not a boolean, using the default", colAvailable, raw))
		}
	}
	return crop, true
}

// cellNumber reads a numeric cell such as "10" or "10.00". Anything else
// reads as zero and leaves a note.
func cellNumber(get func(string) string, col string, notes *[]string) float64 {
	raw := get(col)
	if raw == "" {
		return 0
	}
	n, ok := parseNumber(raw)
	if !ok {
		*notes = append(*notes, fmt.Sprintf("%s %q is not a number, using the default", col, raw))
		return 0
	}
	return n
}

func sameFarm(a, b FarmRecord) bool {
	return a.Name == b.Name && a.Country == b.Country && a.Location == b.Location
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
