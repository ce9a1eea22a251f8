package planner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// Record is the persisted form of a request. Field names and the YYYY-MM-DD
// date format are read back by later runs.
type Record struct {
	Geohash   string `json:"geohash" csv:"geohash"`
	IsPOI     bool   `json:"is_poi" csv:"is_poi"`
	DateStart string `json:"date_start" csv:"date_start"`
	DateEnd   string `json:"date_end" csv:"date_end"`
}

func (r Request) Record() Record {
	return Record{
		Geohash:   r.Geohash,
		IsPOI:     r.IsPOI,
		DateStart: r.Interval.Start.Format(DateLayout),
		DateEnd:   r.Interval.End.Format(DateLayout),
	}
}

func (r Record) Request() (Request, error) {
	start, err := time.Parse(DateLayout, r.DateStart)
	if err != nil {
		return Request{}, fmt.Errorf("invalid date_start for %s: %w", r.Geohash, err)
	}
	end, err := time.Parse(DateLayout, r.DateEnd)
	if err != nil {
		return Request{}, fmt.Errorf("invalid date_end for %s: %w", r.Geohash, err)
	}
	return Request{
		Geohash:  r.Geohash,
		Interval: Interval{Start: start, End: end},
		IsPOI:    r.IsPOI,
	}, nil
}

func toRecords(requests []Request) []Record {
	records := make([]Record, 0, len(requests))
	for _, r := range requests {
		records = append(records, r.Record())
	}
	return records
}

func fromRecords(records []Record) ([]Request, error) {
	requests := make([]Request, 0, len(records))
	for _, rec := range records {
		r, err := rec.Request()
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, nil
}

func EncodeRequests(w io.Writer, requests []Request) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(toRecords(requests)); err != nil {
		return fmt.Errorf("error encoding requests: %w", err)
	}
	return nil
}

func DecodeRequests(r io.Reader) ([]Request, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("error decoding requests: %w", err)
	}
	return fromRecords(records)
}

// SaveRequests writes the plan to path, creating parent directories.
func SaveRequests(path string, requests []Request) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer file.Close()

	return EncodeRequests(file, requests)
}

func LoadRequests(path string) ([]Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()

	return DecodeRequests(file)
}

func WriteRequestsCSV(w io.Writer, requests []Request) error {
	records := toRecords(requests)
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("error writing requests csv: %w", err)
	}
	return nil
}

func ReadRequestsCSV(r io.Reader) ([]Request, error) {
	var records []Record
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("error reading requests csv: %w", err)
	}
	return fromRecords(records)
}

// Summary counts requests per partition.
type Summary struct {
	Background int `json:"background"`
	POI        int `json:"poi"`
	Cells      int `json:"cells"`
}

func Summarize(requests []Request) Summary {
	var s Summary
	cells := make(map[string]struct{})
	for _, r := range requests {
		if r.IsPOI {
			s.POI++
		} else {
			s.Background++
		}
		cells[r.Geohash] = struct{}{}
	}
	s.Cells = len(cells)
	return s
}
