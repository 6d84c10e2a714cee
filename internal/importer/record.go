package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	ErrNoFile    = errors.New("input file not found")
	ErrNotArray  = errors.New("JSON root must be an array of farms")
	ErrMalformed = errors.New("malformed JSON input")
)

// FarmRecord is one farm of an import batch, with its nested listings.
type FarmRecord struct {
	Name        string   `json:"name"`
	Country     string   `json:"country"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	ImageURL    string   `json:"image_url"`
	Rating      float64  `json:"rating"`
	Icon        string   `json:"icon"`
	Crops       CropList `json:"crops"`

	// set by Parse for array elements that are not farm objects
	invalid bool
	// optional values that could not be read and fell back to their default
	notes []string
}

// CropRecord describes a crop and the farm's listing of it.
type CropRecord struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Season      string  `json:"season"`
	Origin      string  `json:"origin"`
	Description string  `json:"description"`
	Emoji       string  `json:"emoji"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Available   *bool   `json:"available"`

	invalid bool
	notes   []string
}

func (f FarmRecord) valid() bool {
	return f.problem() == ""
}

// problem explains why the record is skipped, or is empty when it is not.
func (f FarmRecord) problem() string {
	if f.invalid {
		return "not a JSON object"
	}
	return missing(map[string]string{"name": f.Name, "country": f.Country, "location": f.Location},
		"name", "country", "location")
}

func (c CropRecord) valid() bool {
	return c.problem() == ""
}

func (c CropRecord) problem() string {
	if c.invalid {
		return "not a JSON object"
	}
	return missing(map[string]string{"name": c.Name, "category": c.Category, "season": c.Season, "origin": c.Origin},
		"name", "category", "season", "origin")
}

func missing(values map[string]string, order ...string) string {
	var absent []string
	for _, key := range order {
		if !present(values[key]) {
			absent = append(absent, key)
		}
	}
	if len(absent) == 0 {
		return ""
	}
	return "missing required fields: " + strings.Join(absent, ", ")
}

func (c CropRecord) available() bool {
	return c.Available == nil || *c.Available
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// CropList is the listings of a farm record. A value that is not an array
// is treated as no listings.
type CropList []CropRecord

func (l *CropList) UnmarshalJSON(data []byte) error {
	var items []CropRecord
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

// UnmarshalJSON reads a farm object field by field. Optional values of the
// wrong type fall back to their default and leave a note; only a value that
// is not an object makes the record invalid.
func (f *FarmRecord) UnmarshalJSON(data []byte) error {
	obj, ok := decodeObject(data)
	if !ok {
		*f = FarmRecord{invalid: true}
		return nil
	}

	var notes []string
	rec := FarmRecord{
		Name:        obj.text("name", &notes),
		Country:     obj.text("country", &notes),
		Location:    obj.text("location", &notes),
		Description: obj.text("description", &notes),
		Website:     obj.text("website", &notes),
		ImageURL:    obj.text("image_url", &notes),
		Icon:        obj.text("icon", &notes),
	}
	rec.Rating, _ = obj.number("rating", &notes)
	if raw, ok := obj["crops"]; ok {
		_ = rec.Crops.UnmarshalJSON(raw)
	}
	rec.notes = notes
	*f = rec
	return nil
}

// UnmarshalJSON keeps a listing that is not an object as an invalid record
// so the rest of its farm can still be imported.
func (c *CropRecord) UnmarshalJSON(data []byte) error {
	obj, ok := decodeObject(data)
	if !ok {
		*c = CropRecord{invalid: true}
		return nil
	}

	var notes []string
	rec := CropRecord{
		Name:        obj.text("name", &notes),
		Category:    obj.text("category", &notes),
		Season:      obj.text("season", &notes),
		Origin:      obj.text("origin", &notes),
		Description: obj.text("description", &notes),
		Emoji:       obj.text("emoji", &notes),
	}
	if q, ok := obj.number("quantity", &notes); ok {
		rec.Quantity = int(math.Trunc(q))
	}
	rec.Price, _ = obj.number("price", &notes)
	rec.Available = obj.flag("available", &notes)
	rec.notes = notes
	*c = rec
	return nil
}

type object map[string]json.RawMessage

func decodeObject(data []byte) (object, bool) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// text returns a string field. Other JSON types read as empty.
func (o object) text(key string, notes *[]string) string {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		*notes = append(*notes, fmt.Sprintf("%s is not a string, ignored", key))
		return ""
	}
	return s
}

// number accepts a JSON number or a numeric string.
func (o object) number(key string, notes *[]string) (float64, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, ok := parseNumber(s); ok {
			return n, true
		}
	}
	*notes = append(*notes, fmt.Sprintf("%s %s is not a number, using the default", key, raw))
	return 0, false
}

// flag accepts a JSON boolean or a boolean-like string; nil means unset.
func (o object) flag(key string, notes *[]string) *bool {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, ok := parseFlag(s); ok {
			return &b
		}
	}
	*notes = append(*notes, fmt.Sprintf("%s %s is not a boolean, using the default", key, raw))
	return nil
}

func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func parseFlag(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, true
	case "no", "n":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return b, err == nil
}

// LoadFile reads and parses a batch file. Every error it returns is fatal
// for the run and happens before the database is touched.
func LoadFile(path string) ([]FarmRecord, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNoFile)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoFile, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a top-level JSON array of farm objects. Elements that are
// not farm objects become invalid records and are skipped by Run.
func Parse(r io.Reader) ([]FarmRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotArray
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if elems == nil {
		// literal null
		return nil, ErrNotArray
	}

	records := make([]FarmRecord, 0, len(elems))
	for _, raw := range elems {
		var rec FarmRecord
		if isNull(raw) {
			rec.invalid = true
		} else if err := json.Unmarshal(raw, &rec); err != nil {
			rec = FarmRecord{invalid: true}
		}
		records = append(records, rec)
	}
	return records, nil
}
