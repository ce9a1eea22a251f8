package trajectory

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
)

// Control is the part of a HYSPLIT CONTROL file needed to place a day of
// output in time.
type Control struct {
	Date     time.Time
	Tracks   int
	Duration time.Duration
}

// ParseControl reads a CONTROL file. Anything after '#' on a line is a
// comment. The first line is the start time, the second the number of
// starting locations, and the run duration in hours follows those locations.
func ParseControl(r io.Reader) (Control, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return Control{}, fmt.Errorf("error reading control file: %w", err)
	}
	if len(lines) < 3 {
		return Control{}, fmt.Errorf("control file has %d lines, expected at least 3", len(lines))
	}

	date, err := parseControlDate(lines[0])
	if err != nil {
		return Control{}, err
	}
	tracks, err := strconv.Atoi(lines[1])
	if err != nil {
		return Control{}, fmt.Errorf("invalid number of tracks %q: %w", lines[1], err)
	}
	if tracks < 0 || 2+tracks >= len(lines) {
		return Control{}, fmt.Errorf("control file lists %d tracks but has no duration line", tracks)
	}
	hours, err := strconv.ParseFloat(lines[2+tracks], 64)
	if err != nil {
		return Control{}, fmt.Errorf("invalid duration %q: %w", lines[2+tracks], err)
	}

	return Control{
		Date:     date,
		Tracks:   tracks,
		Duration: time.Duration(hours * float64(time.Hour)),
	}, nil
}

// parseControlDate reads "yy mm dd HH MM". Two digit years below 69 are in
// the 2000s.
func parseControlDate(line string) (time.Time, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return time.Time{}, fmt.Errorf("invalid start time %q", line)
	}
	var v [5]int
	for i := range v {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid start time %q: %w", line, err)
		}
		v[i] = n
	}
	year := v[0]
	switch {
	case year < 69:
		year += 2000
	case year < 100:
		year += 1900
	}
	if v[1] < 1 || v[1] > 12 || v[2] < 1 || v[2] > 31 || v[3] > 23 || v[4] > 59 {
		return time.Time{}, fmt.Errorf("invalid start time %q", line)
	}
	return time.Date(year, time.Month(v[1]), v[2], v[3], v[4], 0, 0, time.UTC), nil
}

type DayRecord struct {
	PointID  string  `csv:"point_id"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Altitude float64 `csv:"altitude"`
}

// Track is the first character of the point id.
func (r DayRecord) Track() string {
	id := strings.TrimSpace(r.PointID)
	if id == "" {
		return ""
	}
	return id[:1]
}

// Sequence is the point number following the track character.
func (r DayRecord) Sequence() int {
	id := strings.TrimSpace(r.PointID)
	if len(id) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(id[1:])
	return n
}

// ParseDay reads a headerless point_id,x,y,altitude file and drops the END
// marker.
func ParseDay(r io.Reader) ([]DayRecord, error) {
	var kept strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "END") {
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading trajectory file: %w", err)
	}

	if kept.Len() == 0 {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(kept.String()))
	reader.TrimLeadingSpace = true
	var records []DayRecord
	if err := gocsv.UnmarshalCSVWithoutHeaders(reader, &records); err != nil {
		return nil, fmt.Errorf("error parsing trajectory file: %w", err)
	}
	return records, nil
}

var dayFileRe = regexp.MustCompile(`_day(\d+)\.txt$`)

// LoadSwarm reads the CONTROL and day files of one swarm from dir and returns
// one trajectory per track, ordered by track.
func LoadSwarm(dir, swarmID string) ([]Trajectory, error) {
	controlFiles, err := filepath.Glob(filepath.Join(dir, swarmID+"_CONTROL.*.txt"))
	if err != nil {
		return nil, err
	}
	controls := make([]Control, 0, len(controlFiles))
	for _, path := range controlFiles {
		control, err := parseFile(path, ParseControl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		controls = append(controls, control)
	}
	if len(controls) == 0 {
		return nil, fmt.Errorf("no control files for swarm %s", swarmID)
	}
	sort.Slice(controls, func(i, j int) bool { return controls[i].Date.Before(controls[j].Date) })
	start := controls[0].Date

	dayFiles, err := filepath.Glob(filepath.Join(dir, swarmID+"_day*.txt"))
	if err != nil {
		return nil, err
	}

	type dated struct {
		record DayRecord
		date   time.Time
	}
	tracks := make(map[string][]dated)
	for _, path := range dayFiles {
		m := dayFileRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		if day < 1 || day > len(controls) {
			return nil, fmt.Errorf("%s: day %d has no control file", filepath.Base(path), day)
		}
		records, err := parseFile(path, ParseDay)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		for _, r := range records {
			tracks[r.Track()] = append(tracks[r.Track()], dated{record: r, date: controls[day-1].Date})
		}
	}

	names := make([]string, 0, len(tracks))
	for name := range tracks {
		names = append(names, name)
	}
	sort.Strings(names)

	trajectories := make([]Trajectory, 0, len(names))
	for _, name := range names {
		points := tracks[name]
		sort.SliceStable(points, func(i, j int) bool {
			if !points[i].date.Equal(points[j].date) {
				return points[i].date.Before(points[j].date)
			}
			return points[i].record.Sequence() < points[j].record.Sequence()
		})

		builder := NewBuilder(swarmID, name, start)
		for _, p := range points {
			err := builder.Append(Point{
				Position: orb.Point{p.record.X, p.record.Y},
				Altitude: p.record.Altitude,
				Offset:   p.date.Sub(start),
			})
			if err != nil {
				return nil, err
			}
		}
		trajectories = append(trajectories, builder.Build())
	}
	return trajectories, nil
}

func parseFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	file, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer file.Close()
	return parse(file)
}

// ExtractArchives unpacks every <swarm>.zip in inputDir into tempDir and
// returns the swarm ids in name order.
func ExtractArchives(inputDir, tempDir string) ([]string, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating %s: %w", tempDir, err)
	}
	archives, err := filepath.Glob(filepath.Join(inputDir, "*.zip"))
	if err != nil {
		return nil, err
	}
	sort.Strings(archives)

	ids := make([]string, 0, len(archives))
	for _, archive := range archives {
		if err := unzip(archive, tempDir); err != nil {
			return nil, fmt.Errorf("error extracting %s: %w", filepath.Base(archive), err)
		}
		ids = append(ids, strings.TrimSuffix(filepath.Base(archive), ".zip"))
	}
	return ids, nil
}

func unzip(archive, dest string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer reader.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range reader.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("entry %q escapes the destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
